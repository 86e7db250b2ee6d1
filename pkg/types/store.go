package types

import "context"

// Store is the trip-planning state store. Callers attach to a backend,
// use the entity, lifecycle, versioning, sequencing, and integrity
// operations, and detach when done.
type Store interface {
	// Attach connects the store to the backend described by config and
	// creates the schema if needed. Returns ErrAlreadyAttached if attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent; afterwards every
	// operation returns ErrStoreDetached.
	Detach() error

	Users
	Trips
	Plans
	Conversations
	Integrity
}

// Users is the user half of the entity store.
type Users interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUserProfile(ctx context.Context, userID string, patch UserProfilePatch) (*User, error)
}

// Trips covers trip records and their lifecycle.
type Trips interface {
	CreateTrip(ctx context.Context, t *Trip) (*Trip, error)
	GetTrip(ctx context.Context, tripID string) (*Trip, error)
	ListTrips(ctx context.Context, filter TripFilter) ([]*Trip, error)

	// UpdateTrip applies patch if the stored revision still equals
	// expectedRevision; otherwise ConcurrencyConflictError.
	UpdateTrip(ctx context.Context, tripID string, expectedRevision int64, patch TripPatch) (*Trip, error)

	// TransitionTrip moves the trip along an allowed status edge using a
	// check-and-set against the status it read.
	TransitionTrip(ctx context.Context, tripID string, to TripStatus) (*Trip, error)
}

// Plans is the plan versioning engine.
type Plans interface {
	CreateVersion(ctx context.Context, tripID string, payload PlanPayload) (*PlanVersion, error)
	SetPlanStatus(ctx context.Context, planID string, status PlanStatus) (*PlanVersion, error)
	CurrentVersion(ctx context.Context, tripID string) (*PlanVersion, error)
	GetVersion(ctx context.Context, planID string) (*PlanVersion, error)
	GetVersionByNumber(ctx context.Context, tripID string, version int) (*PlanVersion, error)
	ListVersions(ctx context.Context, tripID string) ([]*PlanVersion, error)
}

// Conversations is the chat sequencer.
type Conversations interface {
	Append(ctx context.Context, req AppendRequest) (*ChatMessage, error)
	GetMessage(ctx context.Context, messageID string) (*ChatMessage, error)
	Conversation(ctx context.Context, key ConversationKey, limit int) ([]*ChatMessage, error)
	RecentMessages(ctx context.Context, userID string, filter RecentFilter) ([]*ChatMessage, error)
}

// Integrity mediates deletes and serves the recomputed read views.
type Integrity interface {
	DeleteTrip(ctx context.Context, tripID string, mode PurgeMode) (*DeleteTripResult, error)
	DeleteUser(ctx context.Context, userID string) error

	MessageCount(ctx context.Context, tripID string) (int, error)
	// CurrentPlanCost returns the current plan's total estimated cost and
	// false when the trip has no plan yet.
	CurrentPlanCost(ctx context.Context, tripID string) (float64, bool, error)

	ActiveTrips(ctx context.Context, userID string) ([]*Trip, error)
	TripSummary(ctx context.Context, tripID string) (*TripSummary, error)
	TripSummaries(ctx context.Context, userID string) ([]*TripSummary, error)
	PlanDetail(ctx context.Context, planID string) (*PlanDetail, error)

	Stats(ctx context.Context) (*StoreStats, error)
}
