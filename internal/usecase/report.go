package usecase

import (
	"fmt"
	"io"
	"text/tabwriter"

	"JumpVol/internal/domain/models"
)

// WriteSummary renders a fit report as an aligned text table.
func WriteSummary(w io.Writer, r *models.FitReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "symbol=%s sampler=%s chains=%d warmup=%d draws=%d train=%d test=%d cached=%t\n",
		r.Symbol, r.Sampler, r.Chains, r.Warmup, r.Draws, r.TrainRows, r.TestRows, r.Cached)
	fmt.Fprintln(tw, "param\tmean\tsd\thdi_3%\thdi_97%\tess_bulk\tr_hat\t")
	for _, s := range r.Summary {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.0f\t%.3f\t\n", s.Name, s.Mean, s.SD, s.Q03, s.Q97, s.ESS, s.RHat)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "test rows=%d rmse=%.4f mae=%.4f\n", r.Test.Rows, r.Test.RMSE, r.Test.MAE)
	for _, c := range r.Diagnostics.Chains {
		fmt.Fprintf(w, "chain %d: step=%.4g accept=%.3f depth=%.2f divergences=%d\n",
			c.Chain, c.StepSize, c.MeanAccept, c.MeanTreeDepth, c.Divergences)
	}
	for _, warn := range r.Diagnostics.Warnings {
		fmt.Fprintf(w, "warning [%s] %s\n", warn.Kind, warn.Message)
	}
	if len(r.Excluded) > 0 {
		fmt.Fprintf(w, "excluded days: %d\n", len(r.Excluded))
	}
	_, err := fmt.Fprintf(w, "elapsed %s\n", r.Elapsed.Round(1e6))
	return err
}

// WriteJumps renders daily variation records.
func WriteJumps(w io.Writer, v *VariationResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\trv\tbv\tqv\tstat\tjump\tmagnitude\t")
	for _, r := range v.Records {
		fmt.Fprintf(tw, "%s\t%.6g\t%.6g\t%.6g\t%.3f\t%t\t%.6g\t\n",
			r.Date.Format(models.DayLayout), r.RV, r.BV, r.QV, r.Statistic, r.IsJump, r.Magnitude)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "days=%d jumps=%d excluded=%d critical=%.4f\n", len(v.Records), v.Jumps, len(v.Excluded), v.Critical)
	return err
}
