package types

// PurgeMode selects what DeleteTrip does with chat messages that still
// reference the trip. Plan versions always cascade; messages never do unless
// a purge mode is chosen explicitly.
type PurgeMode int

const (
	// PurgeNone refuses the delete while messages reference the trip.
	PurgeNone PurgeMode = iota
	// PurgeReassign moves the messages to the owner's pre-trip stream,
	// renumbered after that stream's last message in their original order.
	PurgeReassign
	// PurgeDelete deletes the messages. This is intentional data loss.
	PurgeDelete
)

func (m PurgeMode) String() string {
	switch m {
	case PurgeNone:
		return "none"
	case PurgeReassign:
		return "reassign"
	case PurgeDelete:
		return "delete"
	}
	return "unknown"
}

// ParsePurgeMode converts the CLI spelling of a purge mode.
func ParsePurgeMode(s string) (PurgeMode, error) {
	switch s {
	case "", "none":
		return PurgeNone, nil
	case "reassign":
		return PurgeReassign, nil
	case "delete":
		return PurgeDelete, nil
	}
	return PurgeNone, invalid("trip", "purge", "oneof none reassign delete", s)
}

// DeleteTripResult reports what a trip delete removed or moved.
type DeleteTripResult struct {
	TripID             string `json:"trip_id"`
	PlansDeleted       int    `json:"plans_deleted"`
	MessagesDeleted    int    `json:"messages_deleted"`
	MessagesReassigned int    `json:"messages_reassigned"`
}

// TripSummary joins a trip with its current plan and message count. It is
// recomputed on every read.
type TripSummary struct {
	Trip               Trip         `json:"trip"`
	UserName           string       `json:"user_name"`
	DurationDays       int          `json:"duration_days"`
	TotalTravelers     int          `json:"total_travelers"`
	MessageCount       int          `json:"message_count"`
	VersionCount       int          `json:"version_count"`
	CurrentPlan        *PlanVersion `json:"current_plan,omitempty"`
	CurrentPlanCost    float64      `json:"current_plan_cost"`
	HasCurrentPlanCost bool         `json:"has_current_plan_cost"`
}

// PlanDetail joins a plan version with its trip and owner.
type PlanDetail struct {
	Plan      PlanVersion `json:"plan"`
	Trip      Trip        `json:"trip"`
	User      User        `json:"user"`
	IsCurrent bool        `json:"is_current"`
}

// StoreStats counts stored records for monitoring.
type StoreStats struct {
	Users           int                `json:"users"`
	TripsByStatus   map[TripStatus]int `json:"trips_by_status"`
	PlansByStatus   map[PlanStatus]int `json:"plans_by_status"`
	TripMessages    int                `json:"trip_messages"`
	PreTripMessages int                `json:"pre_trip_messages"`
}

// SnapshotCounts reports how many records a snapshot export or import
// handled per table.
type SnapshotCounts struct {
	Users    int `json:"users"`
	Trips    int `json:"trips"`
	Plans    int `json:"plan_versions"`
	Messages int `json:"chat_messages"`
}
