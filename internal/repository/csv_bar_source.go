package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"JumpVol/internal/domain/models"
	domrepo "JumpVol/internal/domain/repository"
	applogger "JumpVol/pkg/logger"
)

// BarTimeLayout is the timestamp format of bar files.
const BarTimeLayout = "2006-01-02 15:04:05"

// CSVBarSource reads {date-time, open, high, low, close, volume} files. The path
// may contain {symbol}, replaced per request.
type CSVBarSource struct {
	pathTemplate string
	l            *applogger.Logger
}

func NewCSVBarSource(pathTemplate string) *CSVBarSource {
	return &CSVBarSource{pathTemplate: pathTemplate, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CSVBarSource) SetLogger(l *applogger.Logger) { s.l = l }

// Path returns the file read for symbol.
func (s *CSVBarSource) Path(symbol string) string {
	return strings.ReplaceAll(s.pathTemplate, "{symbol}", symbol)
}

func (s *CSVBarSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	if s.pathTemplate == "" {
		return nil, errors.New("csv source: no input path configured")
	}
	start := time.Now()
	path := s.Path(symbol)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	bars, err := ReadBars(ctx, f, symbol)
	if err != nil {
		s.l.Error("csv bars read error", applogger.String("path", path), applogger.Error(err))
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	bars = filterRange(bars, from, to)
	s.l.Info("csv bars ok",
		applogger.String("path", path),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return bars, nil
}

// ReadBars parses bar rows. A first row whose timestamp does not parse is taken as a
// header; volume is optional.
func ReadBars(ctx context.Context, r io.Reader, symbol string) ([]models.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var out []models.Bar
	for line := 1; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("line %d: want at least 5 fields, got %d", line, len(rec))
		}
		ts, err := time.Parse(BarTimeLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b := models.Bar{Time: ts, Symbol: symbol}
		fields := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
		for i := 1; i < len(rec) && i <= len(fields); i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, i+1, err)
			}
			*fields[i-1] = v
		}
		out = append(out, b)
	}
	return out, nil
}

func filterRange(bars []models.Bar, from, to time.Time) []models.Bar {
	if from.IsZero() && to.IsZero() {
		return bars
	}
	out := bars[:0:0]
	for _, b := range bars {
		if !from.IsZero() && b.Time.Before(from) {
			continue
		}
		if !to.IsZero() && b.Time.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

var _ domrepo.BarSource = (*CSVBarSource)(nil)
