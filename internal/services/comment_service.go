package services

import (
	"context"
	"errors"
	"strings"

	"commentboard/internal/models"
	"commentboard/internal/repositories"
)

var ErrEmptyComment = errors.New("comment text is required")

// CommentService stores comments for authenticated logins. The session
// check happens before it is called.
type CommentService struct {
	repos repositories.Manager
}

func NewCommentService(repos repositories.Manager) *CommentService {
	return &CommentService{repos: repos}
}

func (s *CommentService) Create(ctx context.Context, loginID int64, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, accountErr(KindValidation, ErrEmptyComment)
	}
	c := &models.Comment{LoginID: loginID, Body: body}
	if err := s.repos.Comments(s.repos.Conn()).Create(ctx, c); err != nil {
		return nil, accountErr(KindPersistence, err)
	}
	return c, nil
}
