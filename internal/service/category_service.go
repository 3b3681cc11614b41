package service

import (
	"context"

	"github.com/Fabian-Z77/StudySpace/internal/model"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo CategoryStore
}

func NewCategoryService(repo CategoryStore) *CategoryService {
	return &CategoryService{repo: repo}
}

// List returns the user's categories ordered by name.
func (s *CategoryService) List(ctx context.Context, user *model.User) ([]model.Category, error) {
	return s.repo.ListByUser(ctx, user.ID)
}

// Names maps category IDs to names for rendering.
func (s *CategoryService) Names(ctx context.Context, user *model.User) (map[uint]string, error) {
	categories, err := s.List(ctx, user)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names, nil
}
