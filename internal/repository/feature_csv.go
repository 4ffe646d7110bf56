package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"JumpVol/internal/domain/models"
)

var featureHeader = []string{
	"date", "next_day_rv", "continuous", "continuous_ma5", "continuous_ma21",
	"jump", "jump_ma5", "jump_ma21", "is_jump",
}

// WriteFeatures encodes rows as CSV with a header. Floats use the shortest
// representation that parses back to the same value.
func WriteFeatures(w io.Writer, rows []models.FeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(featureHeader); err != nil {
		return err
	}
	rec := make([]string, len(featureHeader))
	for _, r := range rows {
		rec[0] = r.Date.Format(models.DayLayout)
		for i, v := range []float64{r.NextDayRV, r.Continuous, r.ContinuousMA5, r.ContinuousMA21, r.Jump, r.JumpMA5, r.JumpMA21} {
			rec[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		rec[8] = strconv.FormatBool(r.IsJump)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFeatures decodes the output of WriteFeatures.
func ReadFeatures(r io.Reader) ([]models.FeatureRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(featureHeader)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range featureHeader {
		if head[i] != h {
			return nil, fmt.Errorf("column %d: want %q, got %q", i+1, h, head[i])
		}
	}

	var out []models.FeatureRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var row models.FeatureRow
		if row.Date, err = time.Parse(models.DayLayout, rec[0]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		dst := []*float64{&row.NextDayRV, &row.Continuous, &row.ContinuousMA5, &row.ContinuousMA21, &row.Jump, &row.JumpMA5, &row.JumpMA21}
		for i, p := range dst {
			if *p, err = strconv.ParseFloat(rec[i+1], 64); err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, featureHeader[i+1], err)
			}
		}
		if row.IsJump, err = strconv.ParseBool(rec[8]); err != nil {
			return nil, fmt.Errorf("line %d is_jump: %w", line, err)
		}
		out = append(out, row)
	}
}
