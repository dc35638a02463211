package drivers

import (
	"context"
	"errors"
	"regexp"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/BearBump/SendBox/internal/services/refuse"
	"github.com/BearBump/SendBox/internal/storage/pgsend"
)

type Repository interface {
	ListDrivers(ctx context.Context) ([]*models.Driver, error)
	DriverCifnifExists(ctx context.Context, cifnif string) (bool, error)
	CreateDriver(ctx context.Context, cifnif, name string) (*models.Driver, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

var cifnifRe = regexp.MustCompile(`^[A-Za-z0-9]{8,20}$`)

type CreateInput struct {
	Cifnif string `json:"cifnif"`
	Name   string `json:"name"`
}

func (s *Service) List(ctx context.Context) ([]*models.Driver, error) {
	return s.repo.ListDrivers(ctx)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Driver, error) {
	if in.Cifnif == "" {
		return nil, refuse.New(400, "cifnif is required")
	}
	if !cifnifRe.MatchString(in.Cifnif) {
		return nil, refuse.New(400, "cifnif must be 8 to 20 alphanumeric characters")
	}
	if len(in.Name) < 2 || len(in.Name) > 255 {
		return nil, refuse.New(400, "name length must be between 2 and 255 characters")
	}

	exists, err := s.repo.DriverCifnifExists(ctx, in.Cifnif)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, refuse.New(409, "existing-driver")
	}

	driver, err := s.repo.CreateDriver(ctx, in.Cifnif, in.Name)
	if err != nil {
		if errors.Is(err, pgsend.ErrDuplicate) {
			return nil, refuse.New(409, "existing-driver")
		}
		return nil, err
	}
	return driver, nil
}
