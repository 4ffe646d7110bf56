package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"JumpVol/internal/domain/models"
	domrepo "JumpVol/internal/domain/repository"
	pkgch "JumpVol/pkg/clickhouse"
	applogger "JumpVol/pkg/logger"
)

const (
	FeaturesTable  = "jv_features"
	PosteriorTable = "jv_posterior"

	insertChunk = 2000
)

// Schema returns the DDL for the sink tables in database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            symbol LowCardinality(String),
            date Date,
            next_day_rv Float64,
            continuous Float64,
            continuous_ma5 Float64,
            continuous_ma21 Float64,
            jump Float64,
            jump_ma5 Float64,
            jump_ma21 Float64,
            is_jump UInt8,
            inserted_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(inserted_at)
        ORDER BY (symbol, date)`, database, FeaturesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            symbol LowCardinality(String),
            fingerprint String,
            fitted_at DateTime,
            sampler LowCardinality(String),
            param String,
            mean Float64,
            sd Float64,
            q03 Float64,
            q97 Float64,
            ess Float64,
            r_hat Float64,
            converged UInt8
        ) ENGINE = MergeTree
        ORDER BY (symbol, fitted_at, param)`, database, PosteriorTable),
	}
}

// CHResultSink writes feature rows and posterior summaries to ClickHouse.
type CHResultSink struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHResultSink(ch *pkgch.Client) *CHResultSink {
	return &CHResultSink{ch: ch, db: ch.DB(), database: ch.Database(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHResultSink) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHResultSink) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema(s.database))
}

func (s *CHResultSink) StoreFeatures(ctx context.Context, symbol string, rows []models.FeatureRow) error {
	start := time.Now()
	cols := "symbol, date, next_day_rv, continuous, continuous_ma5, continuous_ma21, jump, jump_ma5, jump_ma21, is_jump"
	err := insertChunked(ctx, s.db, s.qualified(FeaturesTable), cols, 10, len(rows), func(i int) []interface{} {
		r := rows[i]
		return []interface{}{
			symbol, r.Date, r.NextDayRV, r.Continuous, r.ContinuousMA5, r.ContinuousMA21,
			r.Jump, r.JumpMA5, r.JumpMA21, boolToUInt8(r.IsJump),
		}
	})
	if err != nil {
		s.l.Error("clickhouse store_features error", applogger.String("symbol", symbol), applogger.Error(err))
		return fmt.Errorf("store features: %w", err)
	}
	s.l.Info("clickhouse store_features ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHResultSink) StorePosterior(ctx context.Context, report *models.FitReport) error {
	if report == nil {
		return nil
	}
	converged := boolToUInt8(report.Diagnostics.Converged())
	cols := "symbol, fingerprint, fitted_at, sampler, param, mean, sd, q03, q97, ess, r_hat, converged"
	err := insertChunked(ctx, s.db, s.qualified(PosteriorTable), cols, 12, len(report.Summary), func(i int) []interface{} {
		p := report.Summary[i]
		return []interface{}{
			report.Symbol, report.Fingerprint, report.FittedAt, report.Sampler, p.Name,
			p.Mean, p.SD, p.Q03, p.Q97, p.ESS, p.RHat, converged,
		}
	})
	if err != nil {
		s.l.Error("clickhouse store_posterior error", applogger.String("symbol", report.Symbol), applogger.Error(err))
		return fmt.Errorf("store posterior: %w", err)
	}
	return nil
}

func (s *CHResultSink) Close() error { return s.ch.Close() }

func (s *CHResultSink) qualified(table string) string {
	if s.database == "" {
		return table
	}
	return s.database + "." + table
}

// insertChunked issues multi-row VALUES inserts of at most insertChunk rows.
func insertChunked(ctx context.Context, db *sql.DB, table, cols string, width, n int, row func(int) []interface{}) error {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	for start := 0; start < n; start += insertChunk {
		end := start + insertChunk
		if end > n {
			end = n
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*width)
		for i := start; i < end; i++ {
			values = append(values, placeholder)
			args = append(args, row(i)...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, cols, strings.Join(values, ","))
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var _ domrepo.ResultSink = (*CHResultSink)(nil)
