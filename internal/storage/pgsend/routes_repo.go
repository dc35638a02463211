package pgsend

import (
	"context"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) ListRoutesWithVehicles(ctx context.Context) ([]*models.Route, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  r.id, r.code, r.desc_route, r.vehicle_id,
  v.id, v.code, v.brand, v.capacity
FROM main_routes r
LEFT JOIN main_vehicles v ON v.id = r.vehicle_id
ORDER BY r.id ASC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select routes")
	}
	defer rows.Close()

	var out []*models.Route
	for rows.Next() {
		var r models.Route
		var vID *uint64
		var vCode, vBrand *string
		var vCapacity *int
		if err := rows.Scan(
			&r.ID, &r.Code, &r.DescRoute, &r.VehicleID,
			&vID, &vCode, &vBrand, &vCapacity,
		); err != nil {
			return nil, errors.Wrap(err, "scan route")
		}
		if vID != nil {
			r.Vehicle = &models.Vehicle{ID: *vID, Code: *vCode, Brand: *vBrand, Capacity: *vCapacity}
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// GetRouteVehicle отдаёт данные машины маршрута для проверки назначения.
// nil — маршрута нет; Capacity == nil — у маршрута нет машины.
func (s *Storage) GetRouteVehicle(ctx context.Context, routeID uint64) (*models.RouteVehicle, error) {
	row := s.db.QueryRow(ctx, `
SELECT r.id, v.capacity, v.brand, v.code
FROM main_routes r
LEFT JOIN main_vehicles v ON v.id = r.vehicle_id
WHERE r.id = $1
`, routeID)

	var rv models.RouteVehicle
	err := row.Scan(&rv.RouteID, &rv.Capacity, &rv.Brand, &rv.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select route vehicle")
	}
	return &rv, nil
}

// CreateVehicle и CreateRoute используются при начальном наполнении
// справочников и в интеграционных тестах.
func (s *Storage) CreateVehicle(ctx context.Context, code, brand string, capacity int) (*models.Vehicle, error) {
	row := s.db.QueryRow(ctx, `
INSERT INTO main_vehicles (code, brand, capacity)
VALUES ($1, $2, $3)
RETURNING id, code, brand, capacity
`, code, brand, capacity)

	var v models.Vehicle
	if err := row.Scan(&v.ID, &v.Code, &v.Brand, &v.Capacity); err != nil {
		return nil, errors.Wrap(err, "insert vehicle")
	}
	return &v, nil
}

func (s *Storage) CreateRoute(ctx context.Context, code, descRoute string, vehicleID *uint64) (*models.Route, error) {
	row := s.db.QueryRow(ctx, `
INSERT INTO main_routes (code, desc_route, vehicle_id)
VALUES ($1, $2, $3)
RETURNING id, code, desc_route, vehicle_id
`, code, descRoute, vehicleID)

	var r models.Route
	if err := row.Scan(&r.ID, &r.Code, &r.DescRoute, &r.VehicleID); err != nil {
		return nil, errors.Wrap(err, "insert route")
	}
	return &r, nil
}
