package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/lexdesk/internal/model"
)

var chatFields = []string{"id", "case_id", "title", "ctime"}

type ChatRepo struct {
	conn *Conn
}

func NewChatRepo(conn *Conn) *ChatRepo {
	return &ChatRepo{conn: conn}
}

func (r *ChatRepo) Create(ctx context.Context, chat *model.Chat) error {
	data := map[string]interface{}{
		"id":      chat.ID,
		"case_id": chat.CaseID,
		"title":   chat.Title,
		"ctime":   chat.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("chats", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, "chat.create", sqlStr, args...)
	return err
}

func (r *ChatRepo) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("chats", where, chatFields)
	if err != nil {
		return nil, err
	}
	var chat model.Chat
	err = r.conn.QueryRow(ctx, sqlStr, args...).Scan(&chat.ID, &chat.CaseID, &chat.Title, &chat.Ctime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepo) ListByCase(ctx context.Context, caseID string) ([]model.Chat, error) {
	where := map[string]interface{}{
		"case_id":  caseID,
		"_orderby": "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("chats", where, chatFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chats := make([]model.Chat, 0)
	for rows.Next() {
		var chat model.Chat
		if err := rows.Scan(&chat.ID, &chat.CaseID, &chat.Title, &chat.Ctime); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// Delete removes the chat only when it belongs to caseID.
func (r *ChatRepo) Delete(ctx context.Context, caseID, chatID string) error {
	where := map[string]interface{}{
		"id":      chatID,
		"case_id": caseID,
	}
	sqlStr, args, err := builder.BuildDelete("chats", where)
	if err != nil {
		return err
	}
	res, err := r.conn.Exec(ctx, "chat.delete", sqlStr, args...)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}
