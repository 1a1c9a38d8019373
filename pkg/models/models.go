package models

import "time"

// AnalyzeRequest is the payload for starting an analysis
type AnalyzeRequest struct {
	URL    string `json:"url" validate:"required"`
	UserID string `json:"userId,omitempty"`
	Mode   string `json:"mode,omitempty" validate:"omitempty,oneof=fast comprehensive"`
}

// CompetitorCandidate is a discovered competing business
type CompetitorCandidate struct {
	Name     string `json:"name"`
	Website  string `json:"website"`
	Products string `json:"products"`
}

// ShippingProfile holds extracted shipping policy data for one site.
// Threshold semantics: 0 means free shipping on all orders, nil means the
// threshold could not be determined. The two are never interchangeable.
type ShippingProfile struct {
	Threshold         *float64 `json:"threshold"`
	PolicyText        string   `json:"shipping_incentives"`
	DeliveryTimeframe string   `json:"delivery_timeframe,omitempty"`
	Promotions        string   `json:"promotions,omitempty"`
	FailureNote       string   `json:"failure_note,omitempty"`
}

// CompetitorResult pairs a discovered competitor with its shipping profile
type CompetitorResult struct {
	Name     string          `json:"name"`
	Website  string          `json:"website"`
	Products string          `json:"products"`
	Shipping ShippingProfile `json:"shipping"`
}

// UserShipping is the shipping profile extracted for the submitted site itself
type UserShipping struct {
	Threshold *float64 `json:"threshold"`
	Analysis  string   `json:"analysis"`
}

// AnalysisRecord is the persisted aggregate for one analysis run
type AnalysisRecord struct {
	ID               string             `json:"id"`
	UserID           *string            `json:"user_id,omitempty"`
	URL              string             `json:"url"`
	Mode             string             `json:"mode"`
	Status           AnalysisStatus     `json:"status"`
	BusinessProfile  string             `json:"business_analysis"`
	BusinessSummary  string             `json:"business_summary,omitempty"`
	Competitors      []CompetitorResult `json:"competitors"`
	UserShipping     *UserShipping      `json:"user_shipping,omitempty"`
	AverageThreshold float64            `json:"average_threshold"`
	Recommendations  string             `json:"recommendations,omitempty"`
	Error            string             `json:"error,omitempty"`
	AnalysisTimeMs   int64              `json:"analysis_time_ms"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// AnalyzeResponse is the JSON returned by POST /analyze
type AnalyzeResponse struct {
	Success          bool               `json:"success"`
	BusinessAnalysis string             `json:"business_analysis"`
	BusinessSummary  string             `json:"business_summary,omitempty"`
	Competitors      []CompetitorResult `json:"competitors"`
	UserShipping     *UserShipping      `json:"user_shipping,omitempty"`
	AverageThreshold float64            `json:"average_threshold"`
	Recommendations  string             `json:"recommendations,omitempty"`
	AnalysisTimeMs   int64              `json:"analysis_time_ms"`
	AnalysisID       string             `json:"analysis_id,omitempty"`
}

// ReportSubscription is a recurring bi-weekly analysis report
type ReportSubscription struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Email        string     `json:"email"`
	URL          string     `json:"url"`
	Active       bool       `json:"active"`
	IntervalDays int        `json:"interval_days"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	NextRunAt    time.Time  `json:"next_run_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SubscriptionRequest is the payload for creating a report subscription
type SubscriptionRequest struct {
	URL    string `json:"url" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

// CheckoutRequest is the payload for purchasing a token pack
type CheckoutRequest struct {
	UserID string `json:"userId" validate:"required"`
	Pack   string `json:"pack" validate:"required,oneof=starter growth scale"`
}

// CheckoutResponse carries the Stripe checkout session details
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

// ErrorResponse is the standard error body
type ErrorResponse struct {
	Error          string `json:"error"`
	Details        string `json:"details,omitempty"`
	AnalysisTimeMs int64  `json:"analysis_time_ms,omitempty"`
}

// SuccessResponse is the standard success body for mutations with no payload
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
