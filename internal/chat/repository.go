package chat

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"courier/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetChat(ctx context.Context, chatID uuid.UUID) (*models.Chat, error) {
	c := &models.Chat{}
	query := `SELECT chat_id, type, created_at FROM chats WHERE chat_id = $1`

	err := r.db.QueryRowContext(ctx, query, chatID).Scan(&c.ID, &c.Type, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`
	err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&exists)
	return exists, err
}

// canonicalPair orders two participant ids by byte comparison, so (a,b) and
// (b,a) always address the same private chat.
func canonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(b[:], a[:]) < 0 {
		return b, a
	}
	return a, b
}

// privateMembers collapses a canonical pair into its distinct member set; a
// self-chat degenerates to a single member.
func privateMembers(a, b uuid.UUID) []uuid.UUID {
	if a == b {
		return []uuid.UUID{a}
	}
	return []uuid.UUID{a, b}
}

// GetOrCreatePrivate finds the private chat whose member set is exactly the
// given pair, creating it together with both memberships when absent. The
// pair is canonicalized by sorting, so (a,b) and (b,a) resolve to the same
// chat. A self-chat is a degenerate single-member private chat.
//
// The existence check and the insert are not serialized against concurrent
// callers; two simultaneous first contacts can each miss the other's
// uncommitted row and create duplicate chats. Known and accepted.
func (r *Repository) GetOrCreatePrivate(ctx context.Context, a, b uuid.UUID) (uuid.UUID, error) {
	a, b = canonicalPair(a, b)
	memberIDs := privateMembers(a, b)
	target := len(memberIDs)

	// Exactly-two-members match: a private pair never silently matches a
	// larger group that happens to contain both users.
	query := `SELECT c.chat_id
              FROM chats c
              JOIN chat_members m ON m.chat_id = c.chat_id
              WHERE c.type = 'private'
              GROUP BY c.chat_id
              HAVING COUNT(*) FILTER (WHERE m.user_id IN ($1, $2)) = $3
                 AND COUNT(*) = $3`

	var chatID uuid.UUID
	err := r.db.QueryRowContext(ctx, query, a, b, target).Scan(&chatID)
	if err == nil {
		return chatID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO chats (type) VALUES ('private') RETURNING chat_id`,
	).Scan(&chatID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create chat: %w", err)
	}

	for _, uid := range memberIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id, role) VALUES ($1, $2, $3)`,
			chatID, uid, string(models.RoleMember),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("add member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return chatID, nil
}

func (r *Repository) ListChats(ctx context.Context, userID uuid.UUID) ([]*models.Chat, error) {
	query := `SELECT c.chat_id, c.type, c.created_at
              FROM chats c
              JOIN chat_members m ON m.chat_id = c.chat_id
              WHERE m.user_id = $1
              ORDER BY c.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		c := &models.Chat{}
		if err := rows.Scan(&c.ID, &c.Type, &c.CreatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

type member struct {
	id       uuid.UUID
	username string
}

func (r *Repository) roster(ctx context.Context, chatID uuid.UUID) ([]member, error) {
	query := `SELECT u.user_id, u.display_username
              FROM users u
              JOIN chat_members m ON m.user_id = u.user_id
              WHERE m.chat_id = $1`

	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []member
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.id, &m.username); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func buildView(msg models.Message, senderUsername string, members []member) *models.MessageView {
	view := &models.MessageView{Message: msg, SenderUsername: senderUsername}
	for _, m := range members {
		if m.id == msg.SenderID {
			continue
		}
		view.ReceiverIDs = append(view.ReceiverIDs, m.id.String())
		view.ReceiverUsernames = append(view.ReceiverUsernames, m.username)
	}
	return view
}

// AppendMessage persists a message tagged with the sending session as its
// device and returns it joined with display names for fan-out.
func (r *Repository) AppendMessage(ctx context.Context, chatID, senderID, senderDeviceID uuid.UUID, payload string) (*models.MessageView, error) {
	msg := models.Message{
		ChatID:         chatID,
		SenderID:       senderID,
		SenderDeviceID: senderDeviceID,
		Payload:        payload,
		Status:         models.StatusSent,
	}
	query := `INSERT INTO messages (chat_id, sender_id, sender_device_id, payload, status)
              VALUES ($1, $2, $3, $4, $5)
              RETURNING message_id, created_at`

	err := r.db.QueryRowContext(ctx, query, chatID, senderID, senderDeviceID, payload, msg.Status).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	members, err := r.roster(ctx, chatID)
	if err != nil {
		return nil, err
	}
	senderUsername := ""
	for _, m := range members {
		if m.id == senderID {
			senderUsername = m.username
			break
		}
	}
	return buildView(msg, senderUsername, members), nil
}

// ListMessages returns the newest messages of a chat joined with sender and
// receiver display names.
func (r *Repository) ListMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.MessageView, error) {
	query := `SELECT m.message_id, m.chat_id, m.sender_id, m.sender_device_id,
                     m.payload, m.created_at, m.updated_at, m.status, u.display_username
              FROM messages m
              JOIN users u ON u.user_id = m.sender_id
              WHERE m.chat_id = $1
              ORDER BY m.created_at DESC
              LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		msg      models.Message
		username string
	}
	var fetched []row
	for rows.Next() {
		var rec row
		var updatedAt sql.NullTime
		err := rows.Scan(&rec.msg.ID, &rec.msg.ChatID, &rec.msg.SenderID, &rec.msg.SenderDeviceID,
			&rec.msg.Payload, &rec.msg.CreatedAt, &updatedAt, &rec.msg.Status, &rec.username)
		if err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			rec.msg.UpdatedAt = &t
		}
		fetched = append(fetched, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := r.roster(ctx, chatID)
	if err != nil {
		return nil, err
	}

	views := make([]*models.MessageView, 0, len(fetched))
	for _, rec := range fetched {
		views = append(views, buildView(rec.msg, rec.username, members))
	}
	return views, nil
}
