package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

const planColumns = `plan_id, trip_id, version, itinerary, hotels, flights, agent_metadata,
    daily_budget, total_estimated_cost, status, generated_at, updated_at`

func planLockKey(tripID string) string { return "plan:" + tripID }

// CreateVersion stores payload as the trip's next plan version, in draft.
// Versions for one trip are allocated one at a time, so concurrent callers
// receive distinct consecutive numbers and the newest becomes current.
func (b *Backend) CreateVersion(ctx context.Context, tripID string, payload types.PlanPayload) (_ *types.PlanVersion, err error) {
	defer b.observe("create_version", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := payload.Validate(); err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}

	var pv *types.PlanVersion
	err = b.locks.WithLock(ctx, planLockKey(tripID), func(ctx context.Context) error {
		return b.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := getTrip(ctx, tx, tripID); err != nil {
				return err
			}

			var next int
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(version), 0) + 1 FROM plan_versions WHERE trip_id = ?`, tripID,
			).Scan(&next)
			if err != nil {
				return fmt.Errorf("allocating version: %w", err)
			}

			now := b.now()
			pv = &types.PlanVersion{
				PlanID:             id,
				TripID:             tripID,
				Version:            next,
				Itinerary:          payload.Itinerary,
				Hotels:             payload.Hotels,
				Flights:            payload.Flights,
				AgentMetadata:      payload.AgentMetadata,
				DailyBudget:        payload.DailyBudget,
				TotalEstimatedCost: payload.TotalEstimatedCost,
				Status:             types.PlanStatusDraft,
				GeneratedAt:        now,
				UpdatedAt:          now,
			}
			return insertPlan(ctx, tx, pv)
		})
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("plan version created",
		zap.String("trip_id", tripID),
		zap.String("plan_id", pv.PlanID),
		zap.Int("version", pv.Version),
	)
	return pv, nil
}

// SetPlanStatus approves or rejects a draft version. Other versions of the
// trip are untouched, and approval does not make a version current.
func (b *Backend) SetPlanStatus(ctx context.Context, planID string, status types.PlanStatus) (_ *types.PlanVersion, err error) {
	defer b.observe("set_plan_status", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !status.Valid() {
		return nil, &types.ValidationError{Entity: "plan_version", Field: "status", Constraint: "oneof draft approved rejected", Value: string(status)}
	}

	pv, err := getPlan(ctx, b.db, planID)
	if err != nil {
		return nil, err
	}
	from := pv.Status
	if !from.CanTransitionTo(status) {
		return nil, &types.InvalidTransitionError{Entity: "plan_version", From: string(from), To: string(status)}
	}

	now := b.now()
	res, err := b.db.ExecContext(ctx,
		`UPDATE plan_versions SET status = ?, updated_at = ? WHERE plan_id = ? AND status = ?`,
		status, formatTime(now), planID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("updating plan status: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &types.ConcurrencyConflictError{
			Entity: "plan_version", ID: planID,
			Reason: fmt.Sprintf("status %s changed before update to %s", from, status),
		}
	}
	pv.Status = status
	pv.UpdatedAt = now
	return pv, nil
}

// CurrentVersion returns the trip's highest-numbered version, whatever its
// status.
func (b *Backend) CurrentVersion(ctx context.Context, tripID string) (_ *types.PlanVersion, err error) {
	defer b.observe("current_version", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := getTrip(ctx, b.db, tripID); err != nil {
		return nil, err
	}
	pv, err := currentPlan(ctx, b.db, tripID)
	if err != nil {
		return nil, err
	}
	if pv == nil {
		return nil, &types.NotFoundError{Entity: "plan_version", ID: "current of trip " + tripID}
	}
	return pv, nil
}

// GetVersion returns a plan version by ID.
func (b *Backend) GetVersion(ctx context.Context, planID string) (_ *types.PlanVersion, err error) {
	defer b.observe("get_version", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return getPlan(ctx, b.db, planID)
}

// GetVersionByNumber returns version n of a trip.
func (b *Backend) GetVersionByNumber(ctx context.Context, tripID string, n int) (_ *types.PlanVersion, err error) {
	defer b.observe("get_version_by_number", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	row := b.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plan_versions WHERE trip_id = ? AND version = ?`, tripID, n)
	pv, err := hydratePlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, terr := getTrip(ctx, b.db, tripID); terr != nil {
			return nil, terr
		}
		return nil, &types.NotFoundError{Entity: "plan_version", ID: fmt.Sprintf("%s#%d", tripID, n)}
	}
	if err != nil {
		return nil, fmt.Errorf("getting plan version %s#%d: %w", tripID, n, err)
	}
	return pv, nil
}

// ListVersions returns a trip's full plan history, newest first.
func (b *Backend) ListVersions(ctx context.Context, tripID string) (_ []*types.PlanVersion, err error) {
	defer b.observe("list_versions", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := getTrip(ctx, b.db, tripID); err != nil {
		return nil, err
	}
	return listPlans(ctx, b.db, tripID)
}

func insertPlan(ctx context.Context, q querier, pv *types.PlanVersion) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO plan_versions (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pv.PlanID, pv.TripID, pv.Version,
		nullJSON(pv.Itinerary), nullJSON(pv.Hotels), nullJSON(pv.Flights), nullJSON(pv.AgentMetadata),
		pv.DailyBudget, pv.TotalEstimatedCost, pv.Status,
		formatTime(pv.GeneratedAt), formatTime(pv.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &types.ConcurrencyConflictError{
				Entity: "plan_version", ID: pv.TripID,
				Reason: fmt.Sprintf("version %d already allocated", pv.Version),
			}
		}
		if isForeignKeyViolation(err) {
			return &types.NotFoundError{Entity: "trip", ID: pv.TripID}
		}
		return fmt.Errorf("inserting plan version: %w", err)
	}
	return nil
}

func getPlan(ctx context.Context, q querier, planID string) (*types.PlanVersion, error) {
	row := q.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plan_versions WHERE plan_id = ?`, planID)
	pv, err := hydratePlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Entity: "plan_version", ID: planID}
	}
	if err != nil {
		return nil, fmt.Errorf("getting plan version %s: %w", planID, err)
	}
	return pv, nil
}

// currentPlan returns nil without error when the trip has no versions.
func currentPlan(ctx context.Context, q querier, tripID string) (*types.PlanVersion, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plan_versions WHERE trip_id = ? ORDER BY version DESC LIMIT 1`, tripID)
	pv, err := hydratePlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting current plan of trip %s: %w", tripID, err)
	}
	return pv, nil
}

func listPlans(ctx context.Context, q querier, tripID string) ([]*types.PlanVersion, error) {
	return queryPlans(ctx, q,
		`SELECT `+planColumns+` FROM plan_versions WHERE trip_id = ? ORDER BY version DESC`, tripID)
}

func queryPlans(ctx context.Context, q querier, query string, args ...any) ([]*types.PlanVersion, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing plan versions: %w", err)
	}
	defer rows.Close()

	var plans []*types.PlanVersion
	for rows.Next() {
		pv, err := hydratePlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning plan version: %w", err)
		}
		plans = append(plans, pv)
	}
	return plans, rows.Err()
}

func hydratePlan(row scanner) (*types.PlanVersion, error) {
	var (
		pv                                   types.PlanVersion
		itinerary, hotels, flights, metadata sql.NullString
		generatedAt, updatedAt               string
	)
	err := row.Scan(&pv.PlanID, &pv.TripID, &pv.Version, &itinerary, &hotels, &flights, &metadata,
		&pv.DailyBudget, &pv.TotalEstimatedCost, &pv.Status, &generatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	pv.Itinerary = rawJSON(itinerary)
	pv.Hotels = rawJSON(hotels)
	pv.Flights = rawJSON(flights)
	pv.AgentMetadata = rawJSON(metadata)
	if pv.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, err
	}
	if pv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &pv, nil
}
