// Package store adapts the generated queries to the relay's persistence
// collaborator.
package store

import (
	"context"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/johndosdos/relay/internal/apperrors"
	"github.com/johndosdos/relay/internal/database"
	"github.com/johndosdos/relay/internal/model"
)

type querier interface {
	CreateMessage(ctx context.Context, arg database.CreateMessageParams) (database.Message, error)
	ListMessages(ctx context.Context, limit int32) ([]database.Message, error)
	DeleteAllMessages(ctx context.Context) (int64, error)
}

// Postgres stores messages in the messages table.
type Postgres struct {
	q querier
}

// NewPostgres returns a Postgres store over the given queries.
func NewPostgres(q *database.Queries) *Postgres {
	return &Postgres{q: q}
}

// AppendMessage inserts a message and returns it with the id and timestamp
// assigned by the database.
func (p *Postgres) AppendMessage(ctx context.Context, username, content string) (model.Message, error) {
	row, err := p.q.CreateMessage(ctx, database.CreateMessageParams{
		Username: username,
		Content:  content,
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: create message: %v", apperrors.ErrPersistence, err)
	}

	return toModel(row, 0), nil
}

// ListRecentMessages returns up to limit messages, newest first.
func (p *Postgres) ListRecentMessages(ctx context.Context, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return []model.Message{}, nil
	}
	if limit > math.MaxInt32 {
		limit = math.MaxInt32
	}

	rows, err := p.q.ListMessages(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", apperrors.ErrPersistence, err)
	}

	return lo.Map(rows, toModel), nil
}

// DeleteAllMessages removes every stored message.
func (p *Postgres) DeleteAllMessages(ctx context.Context) error {
	if _, err := p.q.DeleteAllMessages(ctx); err != nil {
		return fmt.Errorf("%w: delete messages: %v", apperrors.ErrPersistence, err)
	}
	return nil
}

func toModel(row database.Message, _ int) model.Message {
	return model.Message{
		ID:        row.ID,
		Username:  row.Username,
		Content:   row.Content,
		CreatedAt: row.CreatedAt.Time.UTC(),
	}
}
