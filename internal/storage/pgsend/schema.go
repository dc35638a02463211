package pgsend

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS main_users (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  rol_id INT NOT NULL DEFAULT 2
)`,
		`
CREATE TABLE IF NOT EXISTS main_drivers (
  id BIGSERIAL PRIMARY KEY,
  cifnif TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS main_vehicles (
  id BIGSERIAL PRIMARY KEY,
  code TEXT NOT NULL,
  brand TEXT NOT NULL,
  capacity INT NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS main_routes (
  id BIGSERIAL PRIMARY KEY,
  code TEXT NOT NULL,
  desc_route TEXT NOT NULL DEFAULT '',
  vehicle_id BIGINT NULL REFERENCES main_vehicles(id)
)`,
		`
CREATE TABLE IF NOT EXISTS main_sends (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NULL REFERENCES main_users(id),
  unique_id BIGINT NOT NULL UNIQUE,
  route_id BIGINT NULL REFERENCES main_routes(id),
  driver_id BIGINT NULL REFERENCES main_drivers(id),
  reference TEXT NOT NULL,
  address TEXT NOT NULL,
  width DOUBLE PRECISION NOT NULL,
  height DOUBLE PRECISION NOT NULL,
  length DOUBLE PRECISION NOT NULL,
  units INT NOT NULL DEFAULT 1,
  state INT NOT NULL DEFAULT 1,
  create_datetime TIMESTAMPTZ NOT NULL,
  transit_datetime TIMESTAMPTZ NULL,
  deliver_datetime TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_main_sends_user_id ON main_sends(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_main_sends_state ON main_sends(state)`,
		// Для поиска активных назначений водителя.
		`CREATE INDEX IF NOT EXISTS idx_main_sends_driver_state ON main_sends(driver_id, state)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
