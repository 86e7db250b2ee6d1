package types

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// TripStatus is the lifecycle state of a trip.
type TripStatus string

// Trip states. Draft is initial; completed and cancelled are terminal.
const (
	TripStatusDraft      TripStatus = "draft"
	TripStatusConfirmed  TripStatus = "confirmed"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

// TripStatuses lists every trip state.
var TripStatuses = []TripStatus{
	TripStatusDraft,
	TripStatusConfirmed,
	TripStatusInProgress,
	TripStatusCompleted,
	TripStatusCancelled,
}

// ActiveTripStatuses are the states reported by the active-trips view.
var ActiveTripStatuses = []TripStatus{
	TripStatusDraft,
	TripStatusConfirmed,
	TripStatusInProgress,
}

func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusDraft, TripStatusConfirmed, TripStatusInProgress,
		TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s TripStatus) Terminal() bool {
	switch s {
	case TripStatusCompleted, TripStatusCancelled:
		return true
	case TripStatusDraft, TripStatusConfirmed, TripStatusInProgress:
		return false
	}
	return false
}

// CanTransitionTo reports whether s -> to is an allowed edge:
//
//	draft -> confirmed -> in_progress -> completed
//	draft | confirmed | in_progress -> cancelled
//
// This graph is product policy; the legacy schema only declared the value set.
func (s TripStatus) CanTransitionTo(to TripStatus) bool {
	switch s {
	case TripStatusDraft:
		return to == TripStatusConfirmed || to == TripStatusCancelled
	case TripStatusConfirmed:
		return to == TripStatusInProgress || to == TripStatusCancelled
	case TripStatusInProgress:
		return to == TripStatusCompleted || to == TripStatusCancelled
	case TripStatusCompleted, TripStatusCancelled:
		return false
	}
	return false
}

// ParseTripStatus converts s to a TripStatus or returns a ValidationError.
func ParseTripStatus(s string) (TripStatus, error) {
	st := TripStatus(s)
	if !st.Valid() {
		return "", invalid("trip", "status", "oneof draft confirmed in_progress completed cancelled", s)
	}
	return st, nil
}

// DateLayout is the storage and CLI format for trip dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// civilDate drops the time of day, keeping the calendar date of t.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Trip defaults applied to zero-valued optional fields on creation.
const (
	DefaultTripTitle    = "My Trip"
	DefaultCurrency     = "USD"
	DefaultPurpose      = "leisure"
	DefaultTravelDetail = "none"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Trip is a travel request owned by one user. Revision increments on every
// successful write and backs optimistic check-and-set updates.
type Trip struct {
	TripID            string        `json:"trip_id"`
	UserID            string        `json:"user_id"`
	Phase             Phase         `json:"phase"`
	Title             string        `json:"title"`
	Origin            string        `json:"origin"`
	Destination       string        `json:"destination"`
	StartDate         time.Time     `json:"start_date"`
	EndDate           time.Time     `json:"end_date"`
	Accommodation     Accommodation `json:"accommodation_type"`
	Adults            int           `json:"no_of_adults"`
	Children          int           `json:"no_of_children"`
	Budget            float64       `json:"budget"`
	Currency          string        `json:"currency"`
	Status            TripStatus    `json:"trip_status"`
	Purpose           string        `json:"purpose"`
	TravelPreferences string        `json:"travel_preferences"`
	TravelConstraints string        `json:"travel_constraints"`
	Revision          int64         `json:"revision"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ApplyDefaults fills zero-valued optional text fields. Numeric fields are
// left alone: a zero adult count is an error, not a default.
func (t *Trip) ApplyDefaults() {
	if t.Title == "" {
		t.Title = DefaultTripTitle
	}
	if t.Accommodation == "" {
		t.Accommodation = AccommodationHotel
	}
	if t.Currency == "" {
		t.Currency = DefaultCurrency
	}
	if t.Purpose == "" {
		t.Purpose = DefaultPurpose
	}
	if t.TravelPreferences == "" {
		t.TravelPreferences = DefaultTravelDetail
	}
	if t.TravelConstraints == "" {
		t.TravelConstraints = DefaultTravelDetail
	}
	if t.Status == "" {
		t.Status = TripStatusDraft
	}
	t.StartDate = civilDate(t.StartDate)
	t.EndDate = civilDate(t.EndDate)
}

// Validate checks every trip field invariant and returns the first violation.
func (t *Trip) Validate() error {
	if t.UserID == "" {
		return invalid("trip", "user_id", "required", nil)
	}
	if !t.Phase.Valid() {
		return invalid("trip", "phase", "oneof phases", string(t.Phase))
	}
	if strings.TrimSpace(t.Title) == "" {
		return invalid("trip", "title", "required", nil)
	}
	if strings.TrimSpace(t.Origin) == "" {
		return invalid("trip", "origin", "required", nil)
	}
	if strings.TrimSpace(t.Destination) == "" {
		return invalid("trip", "destination", "required", nil)
	}
	if t.StartDate.IsZero() {
		return invalid("trip", "start_date", "required", nil)
	}
	if t.EndDate.IsZero() {
		return invalid("trip", "end_date", "required", nil)
	}
	if !civilDate(t.EndDate).After(civilDate(t.StartDate)) {
		return invalid("trip", "end_date", "after start_date", t.EndDate.Format(DateLayout))
	}
	if !t.Accommodation.Valid() {
		return invalid("trip", "accommodation_type", "oneof accommodation categories", string(t.Accommodation))
	}
	if t.Adults < 1 {
		return invalid("trip", "no_of_adults", "gte=1", t.Adults)
	}
	if t.Children < 0 {
		return invalid("trip", "no_of_children", "gte=0", t.Children)
	}
	if math.IsNaN(t.Budget) || math.IsInf(t.Budget, 0) || t.Budget < 0 {
		return invalid("trip", "budget", "gte=0", t.Budget)
	}
	if !currencyPattern.MatchString(t.Currency) {
		return invalid("trip", "currency", "ISO 4217 code", t.Currency)
	}
	if !t.Status.Valid() {
		return invalid("trip", "trip_status", "oneof trip statuses", string(t.Status))
	}
	return nil
}

// DurationDays counts the calendar days of the trip, both endpoints included.
func (t *Trip) DurationDays() int {
	d := civilDate(t.EndDate).Sub(civilDate(t.StartDate))
	return int(d.Hours()/24) + 1
}

// TotalTravelers is adults plus children.
func (t *Trip) TotalTravelers() int {
	return t.Adults + t.Children
}

// DailyBudget spreads the budget evenly over the trip's days.
func (t *Trip) DailyBudget() float64 {
	days := t.DurationDays()
	if t.Budget <= 0 || days <= 0 {
		return 0
	}
	return t.Budget / float64(days)
}

// TripPatch carries editable trip fields. Nil fields are left untouched.
// Status and owner are not editable here; status moves only through
// lifecycle transitions.
type TripPatch struct {
	Phase             *Phase         `json:"phase,omitempty"`
	Title             *string        `json:"title,omitempty"`
	Origin            *string        `json:"origin,omitempty"`
	Destination       *string        `json:"destination,omitempty"`
	StartDate         *time.Time     `json:"start_date,omitempty"`
	EndDate           *time.Time     `json:"end_date,omitempty"`
	Accommodation     *Accommodation `json:"accommodation_type,omitempty"`
	Adults            *int           `json:"no_of_adults,omitempty"`
	Children          *int           `json:"no_of_children,omitempty"`
	Budget            *float64       `json:"budget,omitempty"`
	Currency          *string        `json:"currency,omitempty"`
	Purpose           *string        `json:"purpose,omitempty"`
	TravelPreferences *string        `json:"travel_preferences,omitempty"`
	TravelConstraints *string        `json:"travel_constraints,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TripPatch) Empty() bool {
	return p == TripPatch{}
}

// Apply copies the non-nil patch fields onto t. Dates are reduced to their
// calendar day.
func (p TripPatch) Apply(t *Trip) {
	if p.Phase != nil {
		t.Phase = *p.Phase
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Origin != nil {
		t.Origin = *p.Origin
	}
	if p.Destination != nil {
		t.Destination = *p.Destination
	}
	if p.StartDate != nil {
		t.StartDate = civilDate(*p.StartDate)
	}
	if p.EndDate != nil {
		t.EndDate = civilDate(*p.EndDate)
	}
	if p.Accommodation != nil {
		t.Accommodation = *p.Accommodation
	}
	if p.Adults != nil {
		t.Adults = *p.Adults
	}
	if p.Children != nil {
		t.Children = *p.Children
	}
	if p.Budget != nil {
		t.Budget = *p.Budget
	}
	if p.Currency != nil {
		t.Currency = *p.Currency
	}
	if p.Purpose != nil {
		t.Purpose = *p.Purpose
	}
	if p.TravelPreferences != nil {
		t.TravelPreferences = *p.TravelPreferences
	}
	if p.TravelConstraints != nil {
		t.TravelConstraints = *p.TravelConstraints
	}
}

// TripFilter narrows ListTrips. Zero values match everything.
type TripFilter struct {
	UserID   string
	Statuses []TripStatus
	Phase    Phase
	Limit    int
	Offset   int
}
