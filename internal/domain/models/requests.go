package models

// Requests for the HTTP endpoints. Dates accept 2006-01-02, a bar timestamp,
// RFC3339 or unix seconds.

type VariationRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
}

type FeaturesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Split  string `query:"split" json:"split" default:"all" validate:"oneof=train test all"`
}

// FitRequest overrides the configured sampler run; zero fields keep the configured value.
type FitRequest struct {
	Symbol         string  `json:"symbol" validate:"required,max=32"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	Kind           string  `json:"kind" validate:"omitempty,oneof=nuts metropolis"`
	Chains         int     `json:"chains" validate:"omitempty,min=1,max=16"`
	Warmup         int     `json:"warmup" validate:"omitempty,min=10,max=20000"`
	Draws          int     `json:"draws" validate:"omitempty,min=10,max=20000"`
	Seed           uint64  `json:"seed"`
	TargetAccept   float64 `json:"target_accept" validate:"omitempty,gt=0,lt=1"`
	TimeoutSeconds int     `json:"timeout_seconds" validate:"omitempty,min=1,max=86400"`
}
