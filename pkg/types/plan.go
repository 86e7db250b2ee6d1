package types

import (
	"encoding/json"
	"math"
	"time"
)

// PlanStatus is the approval state of a single plan version. It is
// independent of which version is current.
type PlanStatus string

const (
	PlanStatusDraft    PlanStatus = "draft"
	PlanStatusApproved PlanStatus = "approved"
	PlanStatusRejected PlanStatus = "rejected"
)

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusDraft, PlanStatusApproved, PlanStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> to is allowed. Only drafts move;
// approved and rejected are final for that version.
func (s PlanStatus) CanTransitionTo(to PlanStatus) bool {
	switch s {
	case PlanStatusDraft:
		return to == PlanStatusApproved || to == PlanStatusRejected
	case PlanStatusApproved, PlanStatusRejected:
		return false
	}
	return false
}

// ParsePlanStatus converts s to a PlanStatus or returns a ValidationError.
func ParsePlanStatus(s string) (PlanStatus, error) {
	st := PlanStatus(s)
	if !st.Valid() {
		return "", invalid("plan_version", "status", "oneof draft approved rejected", s)
	}
	return st, nil
}

// PlanPayload is what a planning run hands to CreateVersion. The JSON blobs
// are stored verbatim; only their syntax is checked.
type PlanPayload struct {
	Itinerary          json.RawMessage `json:"itinerary,omitempty"`
	Hotels             json.RawMessage `json:"hotels,omitempty"`
	Flights            json.RawMessage `json:"flights,omitempty"`
	AgentMetadata      json.RawMessage `json:"agent_metadata,omitempty"`
	DailyBudget        float64         `json:"daily_budget"`
	TotalEstimatedCost float64         `json:"total_estimated_cost"`
}

// Validate checks blob syntax and that the cost figures are finite and
// non-negative.
func (p *PlanPayload) Validate() error {
	blobs := []struct {
		field string
		raw   json.RawMessage
	}{
		{"itinerary", p.Itinerary},
		{"hotels", p.Hotels},
		{"flights", p.Flights},
		{"agent_metadata", p.AgentMetadata},
	}
	for _, b := range blobs {
		if len(b.raw) > 0 && !json.Valid(b.raw) {
			return invalid("plan_version", b.field, "valid JSON", nil)
		}
	}
	if !finiteNonNegative(p.DailyBudget) {
		return invalid("plan_version", "daily_budget", "gte=0", p.DailyBudget)
	}
	if !finiteNonNegative(p.TotalEstimatedCost) {
		return invalid("plan_version", "total_estimated_cost", "gte=0", p.TotalEstimatedCost)
	}
	return nil
}

func finiteNonNegative(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// PlanVersion is one immutable snapshot of agent output for a trip. Only
// Status and UpdatedAt change after creation.
type PlanVersion struct {
	PlanID             string          `json:"plan_id"`
	TripID             string          `json:"trip_id"`
	Version            int             `json:"version"`
	Itinerary          json.RawMessage `json:"itinerary,omitempty"`
	Hotels             json.RawMessage `json:"hotels,omitempty"`
	Flights            json.RawMessage `json:"flights,omitempty"`
	AgentMetadata      json.RawMessage `json:"agent_metadata,omitempty"`
	DailyBudget        float64         `json:"daily_budget"`
	TotalEstimatedCost float64         `json:"total_estimated_cost"`
	Status             PlanStatus      `json:"status"`
	GeneratedAt        time.Time       `json:"generated_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
