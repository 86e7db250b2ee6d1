package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// DeleteTrip hard-deletes a trip. Plan versions always go with it. Chat
// messages do not: with PurgeNone the delete is refused while any message
// references the trip, PurgeReassign moves them to the owner's pre-trip
// stream, and PurgeDelete removes them.
func (b *Backend) DeleteTrip(ctx context.Context, tripID string, mode types.PurgeMode) (_ *types.DeleteTripResult, err error) {
	defer b.observe("delete_trip", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	switch mode {
	case types.PurgeNone, types.PurgeReassign, types.PurgeDelete:
	default:
		return nil, &types.ValidationError{Entity: "trip", Field: "purge", Constraint: "oneof none reassign delete", Value: int(mode)}
	}

	t, err := getTrip(ctx, b.db, tripID)
	if err != nil {
		return nil, err
	}

	// Lock order: plan, trip conversation, user conversation.
	keys := []string{
		planLockKey(tripID),
		convLockKey(types.TripConversation(tripID)),
		convLockKey(types.UserConversation(t.UserID)),
	}
	res := &types.DeleteTripResult{TripID: tripID}
	err = b.locks.WithLocks(ctx, keys, func(ctx context.Context) error {
		return b.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := getTrip(ctx, tx, tripID); err != nil {
				return err
			}
			msgs, err := count(ctx, tx, `SELECT COUNT(*) FROM chat_messages WHERE trip_id = ?`, tripID)
			if err != nil {
				return err
			}
			plans, err := count(ctx, tx, `SELECT COUNT(*) FROM plan_versions WHERE trip_id = ?`, tripID)
			if err != nil {
				return err
			}

			if msgs > 0 {
				switch mode {
				case types.PurgeNone:
					return &types.DependentDataError{
						Entity: "trip", ID: tripID, Dependent: "chat messages", Count: msgs,
						Suggestion: "cancel the trip instead, or delete with purge mode reassign or delete",
					}
				case types.PurgeReassign:
					if err := reassignMessages(ctx, tx, tripID, t.UserID); err != nil {
						return err
					}
					res.MessagesReassigned = msgs
				case types.PurgeDelete:
					if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE trip_id = ?`, tripID); err != nil {
						return fmt.Errorf("deleting messages: %w", err)
					}
					res.MessagesDeleted = msgs
				}
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE trip_id = ?`, tripID); err != nil {
				if isForeignKeyViolation(err) {
					return &types.DependentDataError{Entity: "trip", ID: tripID, Dependent: "chat messages", Count: msgs}
				}
				return fmt.Errorf("deleting trip: %w", err)
			}
			res.PlansDeleted = plans
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	b.logger.Info("trip deleted",
		zap.String("trip_id", tripID),
		zap.String("purge", mode.String()),
		zap.Int("plans_deleted", res.PlansDeleted),
		zap.Int("messages_deleted", res.MessagesDeleted),
		zap.Int("messages_reassigned", res.MessagesReassigned),
	)
	return res, nil
}

// reassignMessages moves a trip's messages to the user's pre-trip stream,
// numbered after that stream's last message in their original order.
func reassignMessages(ctx context.Context, tx *sql.Tx, tripID, userID string) error {
	base, err := maxSequence(ctx, tx, types.UserConversation(userID))
	if err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT message_id FROM chat_messages WHERE trip_id = ? ORDER BY sequence_number ASC`, tripID)
	if err != nil {
		return fmt.Errorf("listing trip messages: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning message id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing trip messages: %w", err)
	}

	for i, id := range ids {
		_, err := tx.ExecContext(ctx,
			`UPDATE chat_messages SET trip_id = NULL, user_id = ?, sequence_number = ? WHERE message_id = ?`,
			userID, base+int64(i)+1, id)
		if err != nil {
			return fmt.Errorf("reassigning message %s: %w", id, err)
		}
	}
	return nil
}

// DeleteUser removes a user that no trip or message references.
func (b *Backend) DeleteUser(ctx context.Context, userID string) (err error) {
	defer b.observe("delete_user", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return err
	}
	defer unlock()

	return b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, userID); err != nil {
			return err
		}
		trips, err := count(ctx, tx, `SELECT COUNT(*) FROM trips WHERE user_id = ?`, userID)
		if err != nil {
			return err
		}
		if trips > 0 {
			return &types.DependentDataError{
				Entity: "user", ID: userID, Dependent: "trips", Count: trips,
				Suggestion: "delete the user's trips first",
			}
		}
		msgs, err := count(ctx, tx, `SELECT COUNT(*) FROM chat_messages WHERE user_id = ?`, userID)
		if err != nil {
			return err
		}
		if msgs > 0 {
			return &types.DependentDataError{Entity: "user", ID: userID, Dependent: "chat messages", Count: msgs}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return nil
	})
}
