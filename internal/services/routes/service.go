// Package routes отдаёт справочник маршрутов с привязанными машинами.
package routes

import (
	"context"

	"github.com/BearBump/SendBox/internal/models"
)

type Repository interface {
	ListRoutesWithVehicles(ctx context.Context) ([]*models.Route, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListWithVehicles(ctx context.Context) ([]*models.Route, error) {
	return s.repo.ListRoutesWithVehicles(ctx)
}
