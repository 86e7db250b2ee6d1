package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// ErrStoreNotEmpty is returned by Import when the store already holds
// records.
var ErrStoreNotEmpty = errors.New("store already holds data")

// Export writes a consistent snapshot of every table to dir as JSONL, one
// file per table. Existing snapshot files are replaced atomically.
func (b *Backend) Export(ctx context.Context, dir string) (_ *types.SnapshotCounts, err error) {
	defer b.observe("export", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	var files map[string][]json.RawMessage
	counts := &types.SnapshotCounts{}
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		files, err = snapshot(ctx, tx, counts)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, name := range []string{usersFile, tripsFile, plansFile, messagesFile} {
		if err := writeJSONL(filepath.Join(dir, name), files[name]); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}
	b.logger.Info("snapshot exported",
		zap.String("dir", dir),
		zap.Int("users", counts.Users),
		zap.Int("trips", counts.Trips),
		zap.Int("plan_versions", counts.Plans),
		zap.Int("chat_messages", counts.Messages),
	)
	return counts, nil
}

func snapshot(ctx context.Context, tx *sql.Tx, counts *types.SnapshotCounts) (map[string][]json.RawMessage, error) {
	files := make(map[string][]json.RawMessage)

	users, err := queryUsers(ctx, tx, `SELECT `+userColumns+` FROM users ORDER BY created_at, user_id`)
	if err != nil {
		return nil, err
	}
	trips, err := listTrips(ctx, tx, types.TripFilter{})
	if err != nil {
		return nil, err
	}
	plans, err := queryPlans(ctx, tx, `SELECT `+planColumns+` FROM plan_versions ORDER BY trip_id, version`)
	if err != nil {
		return nil, err
	}
	msgs, err := queryMessages(ctx, tx, `SELECT `+messageColumns+` FROM chat_messages ORDER BY created_at, message_id`)
	if err != nil {
		return nil, err
	}

	if files[usersFile], err = marshalAll(users); err != nil {
		return nil, fmt.Errorf("encoding users: %w", err)
	}
	if files[tripsFile], err = marshalAll(trips); err != nil {
		return nil, fmt.Errorf("encoding trips: %w", err)
	}
	if files[plansFile], err = marshalAll(plans); err != nil {
		return nil, fmt.Errorf("encoding plan versions: %w", err)
	}
	if files[messagesFile], err = marshalAll(msgs); err != nil {
		return nil, fmt.Errorf("encoding messages: %w", err)
	}

	counts.Users = len(users)
	counts.Trips = len(trips)
	counts.Plans = len(plans)
	counts.Messages = len(msgs)
	return files, nil
}

// Import loads a snapshot written by Export into an empty store, keeping
// IDs, version numbers, and sequence numbers. Every record is validated;
// nothing is written unless the whole snapshot loads.
func (b *Backend) Import(ctx context.Context, dir string) (_ *types.SnapshotCounts, err error) {
	defer b.observe("import", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	users, err := decodeFile[types.User](dir, usersFile)
	if err != nil {
		return nil, err
	}
	trips, err := decodeFile[types.Trip](dir, tripsFile)
	if err != nil {
		return nil, err
	}
	plans, err := decodeFile[types.PlanVersion](dir, plansFile)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeFile[types.ChatMessage](dir, messagesFile)
	if err != nil {
		return nil, err
	}

	err = b.inTx(ctx, func(tx *sql.Tx) error {
		n, err := count(ctx, tx, `SELECT (SELECT COUNT(*) FROM users) + (SELECT COUNT(*) FROM trips)`)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrStoreNotEmpty
		}

		for i, u := range users {
			if err := u.Validate(); err != nil {
				return recordError(usersFile, i, err)
			}
			if err := insertUser(ctx, tx, u); err != nil {
				return recordError(usersFile, i, err)
			}
		}
		owners := make(map[string]string, len(trips))
		for i, t := range trips {
			t.StartDate, t.EndDate = t.StartDate.UTC(), t.EndDate.UTC()
			if err := t.Validate(); err != nil {
				return recordError(tripsFile, i, err)
			}
			if t.Revision < 1 {
				return recordError(tripsFile, i, &types.ValidationError{
					Entity: "trip", Field: "revision", Constraint: "gte=1", Value: t.Revision,
				})
			}
			if err := insertTrip(ctx, tx, t); err != nil {
				return recordError(tripsFile, i, err)
			}
			owners[t.TripID] = t.UserID
		}
		for i, pv := range plans {
			if err := validateImportedPlan(pv); err != nil {
				return recordError(plansFile, i, err)
			}
			if err := insertPlan(ctx, tx, pv); err != nil {
				return recordError(plansFile, i, duplicateInSnapshot(err, "plan_version", "version", pv.Version))
			}
		}
		for i, m := range msgs {
			if err := validateImportedMessage(m); err != nil {
				return recordError(messagesFile, i, err)
			}
			if m.TripID != nil && owners[*m.TripID] != m.UserID {
				return recordError(messagesFile, i, &types.ValidationError{
					Entity: "chat_message", Field: "trip_id", Constraint: "trip owned by user_id", Value: *m.TripID,
				})
			}
			if err := insertMessage(ctx, tx, m); err != nil {
				return recordError(messagesFile, i, duplicateInSnapshot(err, "chat_message", "sequence_number", m.SequenceNumber))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &types.SnapshotCounts{Users: len(users), Trips: len(trips), Plans: len(plans), Messages: len(msgs)}, nil
}

func decodeFile[T any](dir, name string) ([]*T, error) {
	records, err := readJSONL(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(records))
	for i, rec := range records {
		v := new(T)
		if err := json.Unmarshal(rec, v); err != nil {
			return nil, fmt.Errorf("%s record %d: %w", name, i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func recordError(file string, i int, err error) error {
	return fmt.Errorf("%s record %d: %w", file, i+1, err)
}

// duplicateInSnapshot reports a unique-index violation during import as
// invalid input. The store is empty, so the clash is inside the snapshot.
func duplicateInSnapshot(err error, entity, field string, value any) error {
	var conflict *types.ConcurrencyConflictError
	if errors.As(err, &conflict) {
		return &types.ValidationError{Entity: entity, Field: field, Constraint: "unique", Value: value}
	}
	return err
}

func validateImportedPlan(pv *types.PlanVersion) error {
	payload := types.PlanPayload{
		Itinerary:          pv.Itinerary,
		Hotels:             pv.Hotels,
		Flights:            pv.Flights,
		AgentMetadata:      pv.AgentMetadata,
		DailyBudget:        pv.DailyBudget,
		TotalEstimatedCost: pv.TotalEstimatedCost,
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	if pv.Version < 1 {
		return &types.ValidationError{Entity: "plan_version", Field: "version", Constraint: "gte=1", Value: pv.Version}
	}
	if !pv.Status.Valid() {
		return &types.ValidationError{Entity: "plan_version", Field: "status", Constraint: "oneof draft approved rejected", Value: string(pv.Status)}
	}
	return nil
}

func validateImportedMessage(m *types.ChatMessage) error {
	req := types.AppendRequest{
		UserID:   m.UserID,
		TripID:   m.TripID,
		Role:     m.Role,
		Phase:    m.Phase,
		Content:  m.Content,
		Metadata: m.Metadata,
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if m.SequenceNumber < 1 {
		return &types.ValidationError{Entity: "chat_message", Field: "sequence_number", Constraint: "gte=1", Value: m.SequenceNumber}
	}
	return nil
}
