package sqlite

import (
	"database/sql"
	"fmt"
)

// Schema DDL. Plan versions cascade with their trip; chat messages hold a
// plain foreign key to the trip so a trip with messages cannot be deleted
// until the messages are reassigned or purged.
const (
	createUsers = `CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    profile TEXT NOT NULL DEFAULT '',
    travel_preferences TEXT NOT NULL DEFAULT '',
    travel_constraints TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createTrips = `CREATE TABLE IF NOT EXISTS trips (
    trip_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(user_id),
    phase TEXT NOT NULL,
    title TEXT NOT NULL,
    origin TEXT NOT NULL,
    destination TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    accommodation_type TEXT NOT NULL,
    no_of_adults INTEGER NOT NULL CHECK (no_of_adults >= 1),
    no_of_children INTEGER NOT NULL CHECK (no_of_children >= 0),
    budget REAL NOT NULL CHECK (budget >= 0),
    currency TEXT NOT NULL,
    trip_status TEXT NOT NULL
        CHECK (trip_status IN ('draft', 'confirmed', 'in_progress', 'completed', 'cancelled')),
    purpose TEXT NOT NULL,
    travel_preferences TEXT NOT NULL,
    travel_constraints TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    CHECK (end_date > start_date)
);`

	createPlanVersions = `CREATE TABLE IF NOT EXISTS plan_versions (
    plan_id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL REFERENCES trips(trip_id) ON DELETE CASCADE,
    version INTEGER NOT NULL CHECK (version >= 1),
    itinerary TEXT,
    hotels TEXT,
    flights TEXT,
    agent_metadata TEXT,
    daily_budget REAL NOT NULL DEFAULT 0 CHECK (daily_budget >= 0),
    total_estimated_cost REAL NOT NULL DEFAULT 0 CHECK (total_estimated_cost >= 0),
    status TEXT NOT NULL CHECK (status IN ('draft', 'approved', 'rejected')),
    generated_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (trip_id, version)
);`

	createChatMessages = `CREATE TABLE IF NOT EXISTS chat_messages (
    message_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(user_id),
    trip_id TEXT REFERENCES trips(trip_id),
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
    phase TEXT,
    content TEXT NOT NULL,
    metadata TEXT,
    sequence_number INTEGER NOT NULL CHECK (sequence_number >= 1),
    created_at TEXT NOT NULL
);`
)

// Index DDL. The two partial unique indexes give each conversation its own
// sequence space: a trip, or a user's pre-trip stream.
const (
	idxTripsUser        = `CREATE INDEX IF NOT EXISTS idx_trips_user ON trips(user_id, created_at);`
	idxTripsStatus      = `CREATE INDEX IF NOT EXISTS idx_trips_status ON trips(trip_status);`
	idxPlanVersionsTrip = `CREATE INDEX IF NOT EXISTS idx_plan_versions_trip ON plan_versions(trip_id, version DESC);`
	idxChatTripSeq      = `CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_trip_seq
    ON chat_messages(trip_id, sequence_number) WHERE trip_id IS NOT NULL;`
	idxChatUserSeq = `CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_user_seq
    ON chat_messages(user_id, sequence_number) WHERE trip_id IS NULL;`
	idxChatUserCreated = `CREATE INDEX IF NOT EXISTS idx_chat_user_created ON chat_messages(user_id, created_at);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createUsers,
	createTrips,
	createPlanVersions,
	createChatMessages,
}

var indexDDL = []string{
	idxTripsUser,
	idxTripsStatus,
	idxPlanVersionsTrip,
	idxChatTripSeq,
	idxChatUserSeq,
	idxChatUserCreated,
}

func applySchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return tx.Commit()
}
