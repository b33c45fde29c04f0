package categories

import (
	"context"
	"errors"
	"strings"
)

// Service handles category reference data.
type Service struct {
	repo Repository
}

// NewService constructs the Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	if err := s.validate(category); err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, category)
}

func (s *Service) validate(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name is required")
	}
	if !strings.HasPrefix(c.Color, "#") || len(c.Color) != 7 {
		return errors.New("category color must be a hex code")
	}
	return nil
}
