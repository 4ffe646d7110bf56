package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDomain matches every *DomainError via errors.Is.
	ErrDomain = errors.New("domain error")
	// ErrInsufficientHistory is returned when too few valid days remain to build features.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidInput marks malformed requests such as an inverted date range.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSamplingCanceled wraps context cancellation during posterior sampling.
	ErrSamplingCanceled = errors.New("sampling canceled")
)

// DomainError reports invalid numeric input for an estimator or the jump test.
type DomainError struct {
	Op     string
	Date   time.Time
	Reason string
}

func (e *DomainError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Date.Format(DayLayout), e.Reason)
}

// Is lets errors.Is(err, ErrDomain) match.
func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// NewDomainError builds a DomainError without a date.
func NewDomainError(op, format string, a ...interface{}) *DomainError {
	return &DomainError{Op: op, Reason: fmt.Sprintf(format, a...)}
}

// WithDate returns a copy of the error tagged with the day it refers to.
func (e *DomainError) WithDate(d time.Time) *DomainError {
	cp := *e
	cp.Date = d
	return &cp
}
