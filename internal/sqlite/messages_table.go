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

const messageColumns = `message_id, user_id, trip_id, role, phase, content, metadata, sequence_number, created_at`

// DefaultRecentLimit is used by RecentMessages when no limit is given.
const DefaultRecentLimit = 10

func convLockKey(key types.ConversationKey) string { return "conv:" + key.String() }

// Append adds one message to its conversation with the next sequence
// number. A message with a trip joins that trip's conversation; the trip
// must belong to the message's user. Without a trip the message joins the
// user's pre-trip stream.
func (b *Backend) Append(ctx context.Context, req types.AppendRequest) (_ *types.ChatMessage, err error) {
	defer b.observe("append", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}

	m := &types.ChatMessage{
		MessageID: id,
		UserID:    req.UserID,
		TripID:    req.TripID,
		Role:      req.Role,
		Phase:     req.Phase,
		Content:   req.Content,
		Metadata:  req.Metadata,
	}
	key := m.ConversationKey()

	err = b.locks.WithLock(ctx, convLockKey(key), func(ctx context.Context) error {
		return b.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := getUser(ctx, tx, req.UserID); err != nil {
				return err
			}
			if key.IsTrip() {
				t, err := getTrip(ctx, tx, key.TripID)
				if err != nil {
					return err
				}
				if t.UserID != req.UserID {
					return &types.ValidationError{
						Entity: "chat_message", Field: "trip_id",
						Constraint: "trip owned by user_id", Value: key.TripID,
					}
				}
			}

			seq, err := maxSequence(ctx, tx, key)
			if err != nil {
				return err
			}
			m.SequenceNumber = seq + 1
			m.CreatedAt = b.now()
			return insertMessage(ctx, tx, m)
		})
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("message appended",
		zap.String("key", key.String()),
		zap.Int64("seq", m.SequenceNumber),
	)
	return m, nil
}

// GetMessage returns a message by ID.
func (b *Backend) GetMessage(ctx context.Context, messageID string) (_ *types.ChatMessage, err error) {
	defer b.observe("get_message", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	row := b.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE message_id = ?`, messageID)
	m, err := hydrateMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Entity: "chat_message", ID: messageID}
	}
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", messageID, err)
	}
	return m, nil
}

// Conversation returns the messages of one conversation in sequence order.
// With limit > 0 only the latest limit messages are returned, still oldest
// first.
func (b *Backend) Conversation(ctx context.Context, key types.ConversationKey, limit int) (_ []*types.ChatMessage, err error) {
	defer b.observe("conversation", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if key.IsTrip() {
		if _, err := getTrip(ctx, b.db, key.TripID); err != nil {
			return nil, err
		}
	} else {
		if key.UserID == "" {
			return nil, &types.ValidationError{Entity: "chat_message", Field: "conversation", Constraint: "trip_id or user_id required"}
		}
		if _, err := getUser(ctx, b.db, key.UserID); err != nil {
			return nil, err
		}
	}
	return conversation(ctx, b.db, key, limit)
}

// RecentMessages returns the user's latest messages across all of their
// conversations, oldest first. filter.Roles narrows by author, e.g. only the
// user's own inputs.
func (b *Backend) RecentMessages(ctx context.Context, userID string, filter types.RecentFilter) (_ []*types.ChatMessage, err error) {
	defer b.observe("recent_messages", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := getUser(ctx, b.db, userID); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE user_id = ?`
	args := []any{userID}
	if len(filter.Roles) > 0 {
		marks := make([]string, len(filter.Roles))
		for i, r := range filter.Roles {
			if !r.Valid() {
				return nil, &types.ValidationError{Entity: "chat_message", Field: "role", Constraint: "oneof user assistant system", Value: string(r)}
			}
			marks[i] = "?"
			args = append(args, r)
		}
		query += " AND role IN (" + strings.Join(marks, ", ") + ")"
	}
	query += " ORDER BY created_at DESC, message_id DESC LIMIT ?"
	args = append(args, limit)

	msgs, err := queryMessages(ctx, b.db, query, args...)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// maxSequence returns the highest sequence number in key's conversation, or
// 0 when it is empty.
func maxSequence(ctx context.Context, q querier, key types.ConversationKey) (int64, error) {
	var (
		seq int64
		err error
	)
	if key.IsTrip() {
		err = q.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sequence_number), 0) FROM chat_messages WHERE trip_id = ?`, key.TripID,
		).Scan(&seq)
	} else {
		err = q.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sequence_number), 0) FROM chat_messages WHERE user_id = ? AND trip_id IS NULL`, key.UserID,
		).Scan(&seq)
	}
	if err != nil {
		return 0, fmt.Errorf("reading sequence of %s: %w", key, err)
	}
	return seq, nil
}

func insertMessage(ctx context.Context, q querier, m *types.ChatMessage) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO chat_messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.UserID, nullString(m.TripID), m.Role, nullPhase(m.Phase), m.Content,
		nullJSON(m.Metadata), m.SequenceNumber, formatTime(m.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &types.ConcurrencyConflictError{
				Entity: "chat_message", ID: m.ConversationKey().String(),
				Reason: fmt.Sprintf("sequence %d already allocated", m.SequenceNumber),
			}
		}
		if isForeignKeyViolation(err) {
			return &types.NotFoundError{Entity: "trip or user", ID: m.ConversationKey().String()}
		}
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func conversation(ctx context.Context, q querier, key types.ConversationKey, limit int) ([]*types.ChatMessage, error) {
	var (
		where string
		arg   string
	)
	if key.IsTrip() {
		where, arg = "trip_id = ?", key.TripID
	} else {
		where, arg = "user_id = ? AND trip_id IS NULL", key.UserID
	}

	if limit > 0 {
		return queryMessages(ctx, q,
			`SELECT `+messageColumns+` FROM (
                SELECT `+messageColumns+` FROM chat_messages WHERE `+where+`
                ORDER BY sequence_number DESC LIMIT ?
            ) ORDER BY sequence_number ASC`, arg, limit)
	}
	return queryMessages(ctx, q,
		`SELECT `+messageColumns+` FROM chat_messages WHERE `+where+` ORDER BY sequence_number ASC`, arg)
}

func queryMessages(ctx context.Context, q querier, query string, args ...any) ([]*types.ChatMessage, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*types.ChatMessage
	for rows.Next() {
		m, err := hydrateMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func hydrateMessage(row scanner) (*types.ChatMessage, error) {
	var (
		m         types.ChatMessage
		tripID    sql.NullString
		phase     sql.NullString
		metadata  sql.NullString
		createdAt string
	)
	err := row.Scan(&m.MessageID, &m.UserID, &tripID, &m.Role, &phase, &m.Content, &metadata,
		&m.SequenceNumber, &createdAt)
	if err != nil {
		return nil, err
	}
	if tripID.Valid {
		id := tripID.String
		m.TripID = &id
	}
	if phase.Valid {
		p := types.Phase(phase.String)
		m.Phase = &p
	}
	m.Metadata = rawJSON(metadata)
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullPhase(p *types.Phase) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}
