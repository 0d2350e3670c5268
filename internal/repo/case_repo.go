package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/lexdesk/internal/model"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
)

var errNotFound = appErr.ErrNotFound

var caseFields = []string{"id", "user_id", "title", "tags", "ctime", "mtime"}

type CaseRepo struct {
	conn *Conn
}

func NewCaseRepo(conn *Conn) *CaseRepo {
	return &CaseRepo{conn: conn}
}

func (r *CaseRepo) Create(ctx context.Context, c *model.Case) error {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":      c.ID,
		"user_id": c.UserID,
		"title":   c.Title,
		"tags":    tags,
		"ctime":   c.Ctime,
		"mtime":   c.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("cases", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, "case.create", sqlStr, args...)
	return err
}

func (r *CaseRepo) GetByID(ctx context.Context, id string) (*model.Case, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("cases", where, caseFields)
	if err != nil {
		return nil, err
	}
	var c model.Case
	var tags string
	err = r.conn.QueryRow(ctx, sqlStr, args...).Scan(&c.ID, &c.UserID, &c.Title, &tags, &c.Ctime, &c.Mtime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CaseRepo) ListByUser(ctx context.Context, userID string) ([]model.Case, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("cases", where, caseFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cases := make([]model.Case, 0)
	for rows.Next() {
		var c model.Case
		var tags string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &tags, &c.Ctime, &c.Mtime); err != nil {
			return nil, err
		}
		if c.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Update writes title, tags and mtime of the case.
func (r *CaseRepo) Update(ctx context.Context, c *model.Case) error {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return err
	}
	where := map[string]interface{}{
		"id": c.ID,
	}
	update := map[string]interface{}{
		"title": c.Title,
		"tags":  tags,
		"mtime": c.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("cases", where, update)
	if err != nil {
		return err
	}
	res, err := r.conn.Exec(ctx, "case.update", sqlStr, args...)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r *CaseRepo) Delete(ctx context.Context, id string) error {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildDelete("cases", where)
	if err != nil {
		return err
	}
	res, err := r.conn.Exec(ctx, "case.delete", sqlStr, args...)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
