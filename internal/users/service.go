package users

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// SetResume replaces the owner's permanent resume and returns the previous one.
func (s *Service) SetResume(ctx context.Context, userID string, resume PermanentResume) (*PermanentResume, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(resume.Path) == "" {
		return nil, errors.New("user id and resume path are required")
	}
	return s.Repo.SetResume(ctx, userID, resume)
}
