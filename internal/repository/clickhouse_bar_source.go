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

// CHBarSource reads bars from a ClickHouse table with columns (symbol, ts, close).
type CHBarSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarSource(ch *pkgch.Client, table string) *CHBarSource {
	return &CHBarSource{db: ch.DB(), table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHBarSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	where := []string{"symbol = ?"}
	args := []interface{}{symbol}
	if !from.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, to)
	}
	q := fmt.Sprintf("SELECT ts, close FROM %s WHERE %s ORDER BY ts ASC", s.table, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse bars query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 4096)
	for rows.Next() {
		b := models.Bar{Symbol: symbol}
		if err := rows.Scan(&b.Time, &b.Close); err != nil {
			s.l.Error("clickhouse bars scan error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Info("clickhouse bars ok",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

var _ domrepo.BarSource = (*CHBarSource)(nil)
