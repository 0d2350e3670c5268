package repo

import (
	"context"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/lexdesk/internal/model"
)

type MessageRepo struct {
	conn *Conn
}

func NewMessageRepo(conn *Conn) *MessageRepo {
	return &MessageRepo{conn: conn}
}

func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	data := map[string]interface{}{
		"id":      msg.ID,
		"chat_id": msg.ChatID,
		"role":    msg.Role,
		"content": msg.Content,
		"ctime":   msg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, "message.create", sqlStr, args...)
	return err
}

// ListByChat returns the conversation in canonical order: oldest first, ties
// broken by insertion order.
func (r *MessageRepo) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	where := map[string]interface{}{
		"chat_id":  chatID,
		"_orderby": "ctime asc, seq asc",
	}
	sqlStr, args, err := builder.BuildSelect("messages", where, []string{"id", "chat_id", "role", "content", "ctime"})
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := make([]model.Message, 0)
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.Ctime); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
