package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// The views below are recomputed from the tables on every call.

// MessageCount returns how many messages reference the trip.
func (b *Backend) MessageCount(ctx context.Context, tripID string) (_ int, err error) {
	defer b.observe("message_count", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrip(ctx, tx, tripID); err != nil {
			return err
		}
		n, err = count(ctx, tx, `SELECT COUNT(*) FROM chat_messages WHERE trip_id = ?`, tripID)
		return err
	})
	return n, err
}

// CurrentPlanCost returns the current version's total estimated cost, or
// (0, false) when the trip has no plan yet.
func (b *Backend) CurrentPlanCost(ctx context.Context, tripID string) (_ float64, _ bool, err error) {
	defer b.observe("current_plan_cost", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return 0, false, err
	}
	defer unlock()

	var pv *types.PlanVersion
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrip(ctx, tx, tripID); err != nil {
			return err
		}
		pv, err = currentPlan(ctx, tx, tripID)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if pv == nil {
		return 0, false, nil
	}
	return pv.TotalEstimatedCost, true, nil
}

// ActiveTrips lists draft, confirmed, and in-progress trips, newest first.
// An empty userID lists every user's active trips.
func (b *Backend) ActiveTrips(ctx context.Context, userID string) (_ []*types.Trip, err error) {
	defer b.observe("active_trips", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var trips []*types.Trip
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if userID != "" {
			if _, err := getUser(ctx, tx, userID); err != nil {
				return err
			}
		}
		trips, err = listTrips(ctx, tx, types.TripFilter{UserID: userID, Statuses: types.ActiveTripStatuses})
		return err
	})
	return trips, err
}

// TripSummary joins a trip with its owner's name, its current plan, and its
// message and version counts.
func (b *Backend) TripSummary(ctx context.Context, tripID string) (_ *types.TripSummary, err error) {
	defer b.observe("trip_summary", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var s *types.TripSummary
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		t, err := getTrip(ctx, tx, tripID)
		if err != nil {
			return err
		}
		s, err = summarize(ctx, tx, t)
		return err
	})
	return s, err
}

// TripSummaries summarizes every trip of a user, newest first.
func (b *Backend) TripSummaries(ctx context.Context, userID string) (_ []*types.TripSummary, err error) {
	defer b.observe("trip_summaries", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []*types.TripSummary
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, userID); err != nil {
			return err
		}
		trips, err := listTrips(ctx, tx, types.TripFilter{UserID: userID})
		if err != nil {
			return err
		}
		out = make([]*types.TripSummary, 0, len(trips))
		for _, t := range trips {
			s, err := summarize(ctx, tx, t)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// summarize reads everything a summary needs through q. Callers pass a
// transaction so the counts and the current plan agree.
func summarize(ctx context.Context, q querier, t *types.Trip) (*types.TripSummary, error) {
	u, err := getUser(ctx, q, t.UserID)
	if err != nil {
		return nil, err
	}
	msgs, err := count(ctx, q, `SELECT COUNT(*) FROM chat_messages WHERE trip_id = ?`, t.TripID)
	if err != nil {
		return nil, err
	}
	versions, err := count(ctx, q, `SELECT COUNT(*) FROM plan_versions WHERE trip_id = ?`, t.TripID)
	if err != nil {
		return nil, err
	}
	pv, err := currentPlan(ctx, q, t.TripID)
	if err != nil {
		return nil, err
	}

	s := &types.TripSummary{
		Trip:           *t,
		UserName:       u.Name,
		DurationDays:   t.DurationDays(),
		TotalTravelers: t.TotalTravelers(),
		MessageCount:   msgs,
		VersionCount:   versions,
		CurrentPlan:    pv,
	}
	if pv != nil {
		s.CurrentPlanCost = pv.TotalEstimatedCost
		s.HasCurrentPlanCost = true
	}
	return s, nil
}

// PlanDetail joins a plan version with its trip and the trip's owner.
func (b *Backend) PlanDetail(ctx context.Context, planID string) (_ *types.PlanDetail, err error) {
	defer b.observe("plan_detail", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var d *types.PlanDetail
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		pv, err := getPlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		t, err := getTrip(ctx, tx, pv.TripID)
		if err != nil {
			return err
		}
		u, err := getUser(ctx, tx, t.UserID)
		if err != nil {
			return err
		}
		var latest int
		err = tx.QueryRowContext(ctx,
			`SELECT MAX(version) FROM plan_versions WHERE trip_id = ?`, pv.TripID).Scan(&latest)
		if err != nil {
			return fmt.Errorf("reading latest version: %w", err)
		}
		d = &types.PlanDetail{Plan: *pv, Trip: *t, User: *u, IsCurrent: pv.Version == latest}
		return nil
	})
	return d, err
}

// Stats counts stored records.
func (b *Backend) Stats(ctx context.Context) (_ *types.StoreStats, err error) {
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var s *types.StoreStats
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		s, err = stats(ctx, tx)
		return err
	})
	return s, err
}

func stats(ctx context.Context, q querier) (_ *types.StoreStats, err error) {
	s := &types.StoreStats{
		TripsByStatus: make(map[types.TripStatus]int),
		PlansByStatus: make(map[types.PlanStatus]int),
	}
	if s.Users, err = count(ctx, q, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, err
	}
	if s.TripMessages, err = count(ctx, q, `SELECT COUNT(*) FROM chat_messages WHERE trip_id IS NOT NULL`); err != nil {
		return nil, err
	}
	if s.PreTripMessages, err = count(ctx, q, `SELECT COUNT(*) FROM chat_messages WHERE trip_id IS NULL`); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT trip_status, COUNT(*) FROM trips GROUP BY trip_status`)
	if err != nil {
		return nil, fmt.Errorf("counting trips: %w", err)
	}
	for rows.Next() {
		var (
			st types.TripStatus
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning trip count: %w", err)
		}
		s.TripsByStatus[st] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx, `SELECT status, COUNT(*) FROM plan_versions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting plan versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			st types.PlanStatus
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scanning plan count: %w", err)
		}
		s.PlansByStatus[st] = n
	}
	return s, rows.Err()
}
