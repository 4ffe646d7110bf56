package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"JumpVol/internal/usecase"
)

var jumpsJSON bool

// jumpsCmd prints per-day realized measures and jump flags.
var jumpsCmd = &cobra.Command{
	Use:   "jumps",
	Short: "Print daily RV, BV, QV and the jump test per day",
	RunE:  runJumps,
}

func init() {
	rootCmd.AddCommand(jumpsCmd)
	jumpsCmd.Flags().BoolVar(&jumpsJSON, "json", false, "Emit JSON instead of a table")
}

func runJumps(cmd *cobra.Command, args []string) error {
	rt, cleanup, err := loadRuntime()
	if err != nil {
		return err
	}
	defer cleanup()

	q, err := query(rt.Config.Source.Symbol)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(0)
	defer cancel()

	v, err := rt.Pipeline.Variation(ctx, q)
	if err != nil {
		return err
	}
	if jumpsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return usecase.WriteJumps(os.Stdout, v)
}
