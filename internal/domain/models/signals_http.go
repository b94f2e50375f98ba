package models

import "time"

// Requests accepted by the HTTP API. Handlers bind path, query and body into
// these and validate them before touching a use case.

type ListSignalsRequest struct {
	Tier   string `query:"tier" json:"tier" validate:"omitempty,oneof=BASIC PRO ENTERPRISE"`
	Status string `query:"status" json:"status" default:"ACTIVE" validate:"oneof=ACTIVE CLOSED CANCELLED"`
	Date   string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type SignalIDRequest struct {
	ID string `param:"id" json:"-" validate:"required"`
}

type CloseSignalRequest struct {
	ID        string     `param:"id" json:"-" validate:"required"`
	ExitPrice float64    `json:"exit_price" validate:"required,gt=0"`
	ExitTime  *time.Time `json:"exit_time"`
}

type AggregateRequest struct {
	Date  string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Scope string `query:"scope" json:"scope" default:"ALL" validate:"oneof=ALL ASSET_CLASS STRATEGY"`
	Value string `query:"value" json:"value" validate:"required_unless=Scope ALL"`
}

type ReportRequest struct {
	From string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
}

type RunCycleRequest struct {
	Symbols         []string `json:"symbols" validate:"omitempty,max=200,dive,required,symbol"`
	ForceInvestment bool     `json:"force_investment"`
}
