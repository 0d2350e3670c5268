package dbutil

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimit(t *testing.T) {
	query, args := Finalize(sqlx.DOLLAR, "SELECT id FROM chats WHERE case_id=? LIMIT ?,?", []interface{}{"c1", 0, 10})
	require.Equal(t, "SELECT id FROM chats WHERE case_id=$1 LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"c1", 10, 0}, args)
}

func TestFinalizeKeepsQuestionMarks(t *testing.T) {
	query, args := Finalize(sqlx.QUESTION, "SELECT id FROM cases WHERE user_id=? LIMIT ?,?", []interface{}{"u1", 0, 5})
	require.Equal(t, "SELECT id FROM cases WHERE user_id=? LIMIT ? OFFSET ?", query)
	require.Equal(t, []interface{}{"u1", 5, 0}, args)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "bad conn", err: fmt.Errorf("exec: %w", driver.ErrBadConn), want: true},
		{name: "pg connection failure", err: &pq.Error{Code: "08006"}, want: true},
		{name: "pg serialization", err: &pq.Error{Code: "40001"}, want: true},
		{name: "pg unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(&pq.Error{Code: "23505"}))
	require.False(t, IsConflict(&pq.Error{Code: "08006"}))
	require.False(t, IsConflict(errors.New("boom")))
}
