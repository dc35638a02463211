package pgsend

import (
	"context"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) ListDrivers(ctx context.Context) ([]*models.Driver, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, cifnif, name FROM main_drivers ORDER BY name ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select drivers")
	}
	defer rows.Close()

	var out []*models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.Cifnif, &d.Name); err != nil {
			return nil, errors.Wrap(err, "scan driver")
		}
		out = append(out, &d)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) DriverCifnifExists(ctx context.Context, cifnif string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM main_drivers WHERE cifnif = $1)`, cifnif).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check driver cifnif")
	}
	return exists, nil
}

func (s *Storage) DriverExists(ctx context.Context, driverID uint64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM main_drivers WHERE id = $1)`, driverID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check driver")
	}
	return exists, nil
}

func (s *Storage) CreateDriver(ctx context.Context, cifnif, name string) (*models.Driver, error) {
	row := s.db.QueryRow(ctx, `
INSERT INTO main_drivers (cifnif, name)
VALUES ($1, $2)
RETURNING id, cifnif, name
`, cifnif, name)

	var d models.Driver
	err := row.Scan(&d.ID, &d.Cifnif, &d.Name)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert driver")
	}
	return &d, nil
}
