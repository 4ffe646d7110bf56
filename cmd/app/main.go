package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"JumpVol/internal/di"
	"JumpVol/internal/usecase"
	"JumpVol/pkg/config"
	xutil "JumpVol/pkg/util"
)

var (
	configPath string
	symbolFlag string
	inputFlag  string
	fromFlag   string
	toFlag     string
)

// rootCmd is the base command of the jumpvol CLI.
var rootCmd = &cobra.Command{
	Use:   "jumpvol",
	Short: "Realized variance, jump detection and HAR-Jumps posterior fits",
	Long: `jumpvol turns intraday bars into daily realized variance, bipower and
quadpower variation, flags jump days, builds HAR features and fits a Bayesian
HAR-Jumps model with latent memory by MCMC.

Examples:
  jumpvol jumps --input data/SPY.csv
  jumpvol features --input 'data/{symbol}.csv' --symbol QQQ --out qqq.csv
  jumpvol fit --config config/config.yaml --sampler metropolis
  jumpvol serve --config config/config.yaml`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file (defaults apply when empty)")
	pf.StringVar(&symbolFlag, "symbol", "", "Symbol to process (overrides source.symbol)")
	pf.StringVar(&inputFlag, "input", "", "Bar CSV path, may contain {symbol} (overrides source.path)")
	pf.StringVar(&fromFlag, "from", "", "First bar to use (2006-01-02, RFC3339 or unix seconds)")
	pf.StringVar(&toFlag, "to", "", "Last day to use, inclusive")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies env and flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	if symbolFlag != "" {
		cfg.Source.Symbol = symbolFlag
	}
	if inputFlag != "" {
		cfg.Source.Path = inputFlag
		cfg.Source.Kind = "csv"
	}
	return cfg, nil
}

// loadRuntime wires the pipeline for a one-shot command.
func loadRuntime() (*di.Runtime, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return di.InitializeRuntime(cfg)
}

// query builds the pipeline query from the persistent flags.
func query(symbol string) (usecase.Query, error) {
	q := usecase.Query{Symbol: symbol}
	if fromFlag != "" {
		t, ok := xutil.ParseTime(fromFlag)
		if !ok {
			return q, fmt.Errorf("--from: cannot parse %q", fromFlag)
		}
		q.From = t
	}
	if toFlag != "" {
		t, ok := xutil.ParseTime(toFlag)
		if !ok {
			return q, fmt.Errorf("--to: cannot parse %q", toFlag)
		}
		q.To = xutil.EndOfDay(t)
	}
	return q, nil
}

// signalContext is canceled on SIGINT/SIGTERM so long fits stop cleanly.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
