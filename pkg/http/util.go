package http

import (
	"time"

	"github.com/labstack/echo/v4"

	xutil "JumpVol/pkg/util"
)

// QueryTime reads an optional time query parameter. Empty yields the zero time.
func QueryTime(c echo.Context, name string) (time.Time, *AppError) {
	return ParseTimeField(name, c.QueryParam(name))
}

// ParseTimeField parses an optional time input named field.
func ParseTimeField(name, raw string) (time.Time, *AppError) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := xutil.ParseTime(raw)
	if !ok {
		return time.Time{}, BadRequestErrorf(name, "%s: cannot parse %q as a date", name, raw).
			WithParam("formats", []string{"2006-01-02", "2006-01-02 15:04:05", "RFC3339", "unix"})
	}
	return t, nil
}
