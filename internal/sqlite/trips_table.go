package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

const tripColumns = `trip_id, user_id, phase, title, origin, destination, start_date, end_date,
    accommodation_type, no_of_adults, no_of_children, budget, currency, trip_status, purpose,
    travel_preferences, travel_constraints, revision, created_at, updated_at`

// CreateTrip stores a new trip in draft. Zero-valued optional fields take
// their defaults; the owner must exist.
func (b *Backend) CreateTrip(ctx context.Context, in *types.Trip) (_ *types.Trip, err error) {
	defer b.observe("create_trip", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	t := *in
	t.Status = types.TripStatusDraft
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := b.now()
	t.TripID = id
	t.Revision = 1
	t.CreatedAt = now
	t.UpdatedAt = now

	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, t.UserID); err != nil {
			return err
		}
		return insertTrip(ctx, tx, &t)
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("trip created", zap.String("trip_id", t.TripID), zap.String("user_id", t.UserID))
	return &t, nil
}

// GetTrip returns the trip with the given ID.
func (b *Backend) GetTrip(ctx context.Context, tripID string) (_ *types.Trip, err error) {
	defer b.observe("get_trip", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return getTrip(ctx, b.db, tripID)
}

// ListTrips returns the trips matching filter, newest first.
func (b *Backend) ListTrips(ctx context.Context, filter types.TripFilter) (_ []*types.Trip, err error) {
	defer b.observe("list_trips", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return listTrips(ctx, b.db, filter)
}

// UpdateTrip applies patch if the stored revision equals expectedRevision.
// The merged record is validated as a whole and the revision is bumped
// once. Trips in a terminal state are frozen.
func (b *Backend) UpdateTrip(ctx context.Context, tripID string, expectedRevision int64, patch types.TripPatch) (_ *types.Trip, err error) {
	defer b.observe("update_trip", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if patch.Empty() {
		return nil, &types.ValidationError{Entity: "trip", Field: "patch", Constraint: "at least one field"}
	}

	t, err := getTrip(ctx, b.db, tripID)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, &types.InvalidTransitionError{Entity: "trip", From: string(t.Status), To: string(t.Status)}
	}
	if t.Revision != expectedRevision {
		return nil, &types.ConcurrencyConflictError{
			Entity: "trip", ID: tripID,
			Reason: fmt.Sprintf("revision is %d, expected %d", t.Revision, expectedRevision),
		}
	}

	patch.Apply(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.UpdatedAt = b.now()

	res, err := b.db.ExecContext(ctx,
		`UPDATE trips SET phase = ?, title = ?, origin = ?, destination = ?, start_date = ?, end_date = ?,
            accommodation_type = ?, no_of_adults = ?, no_of_children = ?, budget = ?, currency = ?,
            purpose = ?, travel_preferences = ?, travel_constraints = ?,
            revision = revision + 1, updated_at = ?
         WHERE trip_id = ? AND revision = ? AND trip_status = ?`,
		t.Phase, t.Title, t.Origin, t.Destination, formatDate(t.StartDate), formatDate(t.EndDate),
		t.Accommodation, t.Adults, t.Children, t.Budget, t.Currency,
		t.Purpose, t.TravelPreferences, t.TravelConstraints,
		formatTime(t.UpdatedAt),
		tripID, expectedRevision, t.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("updating trip: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &types.ConcurrencyConflictError{Entity: "trip", ID: tripID, Reason: "trip changed since it was read"}
	}
	t.Revision = expectedRevision + 1
	return t, nil
}

// TransitionTrip moves a trip along one allowed status edge. The write is a
// check-and-set on the status and revision that were read; losing a race
// yields ConcurrencyConflictError and leaves the winner's state in place.
func (b *Backend) TransitionTrip(ctx context.Context, tripID string, to types.TripStatus) (_ *types.Trip, err error) {
	defer b.observe("transition_trip", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !to.Valid() {
		return nil, &types.ValidationError{Entity: "trip", Field: "trip_status", Constraint: "oneof trip statuses", Value: string(to)}
	}

	t, err := getTrip(ctx, b.db, tripID)
	if err != nil {
		return nil, err
	}
	from := t.Status
	if !from.CanTransitionTo(to) {
		return nil, &types.InvalidTransitionError{Entity: "trip", From: string(from), To: string(to)}
	}

	now := b.now()
	res, err := b.db.ExecContext(ctx,
		`UPDATE trips SET trip_status = ?, revision = revision + 1, updated_at = ?
         WHERE trip_id = ? AND trip_status = ? AND revision = ?`,
		to, formatTime(now), tripID, from, t.Revision,
	)
	if err != nil {
		return nil, fmt.Errorf("transitioning trip: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &types.ConcurrencyConflictError{
			Entity: "trip", ID: tripID,
			Reason: fmt.Sprintf("status %s changed before transition to %s", from, to),
		}
	}

	t.Status = to
	t.Revision++
	t.UpdatedAt = now
	b.logger.Debug("trip transitioned",
		zap.String("trip_id", tripID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return t, nil
}

func insertTrip(ctx context.Context, q querier, t *types.Trip) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO trips (`+tripColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TripID, t.UserID, t.Phase, t.Title, t.Origin, t.Destination,
		formatDate(t.StartDate), formatDate(t.EndDate),
		t.Accommodation, t.Adults, t.Children, t.Budget, t.Currency, t.Status, t.Purpose,
		t.TravelPreferences, t.TravelConstraints, t.Revision,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &types.NotFoundError{Entity: "user", ID: t.UserID}
		}
		return fmt.Errorf("inserting trip: %w", err)
	}
	return nil
}

func getTrip(ctx context.Context, q querier, tripID string) (*types.Trip, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE trip_id = ?`, tripID)
	t, err := hydrateTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Entity: "trip", ID: tripID}
	}
	if err != nil {
		return nil, fmt.Errorf("getting trip %s: %w", tripID, err)
	}
	return t, nil
}

func listTrips(ctx context.Context, q querier, filter types.TripFilter) ([]*types.Trip, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, st)
		}
		where = append(where, "trip_status IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.Phase != "" {
		where = append(where, "phase = ?")
		args = append(args, filter.Phase)
	}

	query := `SELECT ` + tripColumns + ` FROM trips`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, trip_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing trips: %w", err)
	}
	defer rows.Close()

	var trips []*types.Trip
	for rows.Next() {
		t, err := hydrateTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func hydrateTrip(row scanner) (*types.Trip, error) {
	var (
		t                    types.Trip
		startDate, endDate   string
		createdAt, updatedAt string
	)
	err := row.Scan(&t.TripID, &t.UserID, &t.Phase, &t.Title, &t.Origin, &t.Destination,
		&startDate, &endDate, &t.Accommodation, &t.Adults, &t.Children, &t.Budget, &t.Currency,
		&t.Status, &t.Purpose, &t.TravelPreferences, &t.TravelConstraints, &t.Revision,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if t.StartDate, err = types.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("parsing start_date: %w", err)
	}
	if t.EndDate, err = types.ParseDate(endDate); err != nil {
		return nil, fmt.Errorf("parsing end_date: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
