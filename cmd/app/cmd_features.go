package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	domrepo "JumpVol/internal/domain/repository"
	"JumpVol/internal/repository"
	applogger "JumpVol/pkg/logger"
)

var (
	featuresOut   string
	featuresSplit string
)

// featuresCmd writes the HAR feature table as CSV.
var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Build the HAR feature table and write it as CSV",
	Long: `Build the log-transformed HAR feature table (continuous and jump parts with
their short and long moving averages, next-day RV as the target).

Examples:
  jumpvol features --input data/SPY.csv
  jumpvol features --input data/SPY.csv --split train --out spy_train.csv`,
	RunE: runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.Flags().StringVar(&featuresOut, "out", "", "Output file (default: stdout)")
	featuresCmd.Flags().StringVar(&featuresSplit, "split", "all", "Rows to write: train, test or all")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	split := domrepo.Split(featuresSplit)
	if !domrepo.IsValidSplit(split) {
		return fmt.Errorf("--split must be train, test or all, got %q", featuresSplit)
	}
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

	fr, err := rt.Pipeline.Features(ctx, q)
	if err != nil {
		return err
	}
	rows := fr.Table.Rows
	switch split {
	case domrepo.SplitTrain:
		rows = fr.Train.Rows
	case domrepo.SplitTest:
		rows = fr.Test.Rows
	}

	var w io.Writer = os.Stdout
	if featuresOut != "" {
		f, err := os.Create(featuresOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := repository.WriteFeatures(w, rows); err != nil {
		return fmt.Errorf("write features: %w", err)
	}
	rt.Logger.Info("features written",
		applogger.String("symbol", fr.Symbol),
		applogger.String("split", string(split)),
		applogger.Int("rows", len(rows)),
	)
	return nil
}
