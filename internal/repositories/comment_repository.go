package repositories

import (
	"context"
	"fmt"

	"commentboard/internal/dbx"
	"commentboard/internal/models"
)

type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) error
}

type commentRepository struct {
	DB dbx.DBTX
}

func NewCommentRepository(db dbx.DBTX) CommentRepository {
	return &commentRepository{DB: db}
}

func (r *commentRepository) Create(ctx context.Context, c *models.Comment) error {
	const q = `
		INSERT INTO comments (login_id, body)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := r.DB.QueryRowContext(ctx, q, c.LoginID, c.Body).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("comment create: %w", err)
	}
	return nil
}
