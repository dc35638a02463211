package pgsend

import (
	"context"
	"strconv"
	"time"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const sendColumns = `
  id, user_id, unique_id, route_id, driver_id,
  reference, address, width, height, length,
  units, state,
  create_datetime, transit_datetime, deliver_datetime`

// SendInsert — строка для вставки нового send.
type SendInsert struct {
	UserID   *uint64
	UniqueID int64
	RouteID  *uint64
	DriverID *uint64

	Reference string
	Address   string
	Width     float64
	Height    float64
	Length    float64

	Units          int
	State          int
	CreateDatetime time.Time
}

// SendPatch — частичное обновление; пишутся только не-nil поля.
type SendPatch struct {
	State    *int
	Units    *int
	RouteID  *uint64
	DriverID *uint64

	TransitDatetime *time.Time
	DeliverDatetime *time.Time
}

func (s *Storage) CreateSend(ctx context.Context, in SendInsert) (*models.Send, error) {
	row := s.db.QueryRow(ctx, `
INSERT INTO main_sends (
  user_id, unique_id, route_id, driver_id,
  reference, address, width, height, length,
  units, state, create_datetime
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING`+sendColumns,
		in.UserID, in.UniqueID, in.RouteID, in.DriverID,
		in.Reference, in.Address, in.Width, in.Height, in.Length,
		in.Units, in.State, in.CreateDatetime.UTC())

	send, err := s.scanSend(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert send")
	}
	return send, nil
}

func (s *Storage) GetSendByID(ctx context.Context, id uint64) (*models.Send, error) {
	row := s.db.QueryRow(ctx, `SELECT`+sendColumns+` FROM main_sends WHERE id = $1`, id)
	send, err := s.scanSend(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select send")
	}
	return send, nil
}

func (s *Storage) GetSendByUniqueID(ctx context.Context, uniqueID int64) (*models.Send, error) {
	row := s.db.QueryRow(ctx, `SELECT`+sendColumns+` FROM main_sends WHERE unique_id = $1`, uniqueID)
	send, err := s.scanSend(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select send by unique_id")
	}
	return send, nil
}

func (s *Storage) UpdateSend(ctx context.Context, id uint64, patch SendPatch) (*models.Send, error) {
	var sb setBuilder
	if patch.State != nil {
		sb.Set("state", *patch.State)
	}
	if patch.Units != nil {
		sb.Set("units", *patch.Units)
	}
	if patch.RouteID != nil {
		sb.Set("route_id", *patch.RouteID)
	}
	if patch.DriverID != nil {
		sb.Set("driver_id", *patch.DriverID)
	}
	if patch.TransitDatetime != nil {
		sb.Set("transit_datetime", patch.TransitDatetime.UTC())
	}
	if patch.DeliverDatetime != nil {
		sb.Set("deliver_datetime", patch.DeliverDatetime.UTC())
	}
	if sb.Empty() {
		return nil, errors.New("empty patch")
	}

	clause, next := sb.Clause()
	args := append(sb.args, id)
	row := s.db.QueryRow(ctx,
		`UPDATE main_sends `+clause+` WHERE id = $`+strconv.Itoa(next)+` RETURNING`+sendColumns,
		args...)

	send, err := s.scanSend(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "update send")
	}
	return send, nil
}

func (s *Storage) ListSendsFiltered(ctx context.Context, filter models.SendFilter, limit, offset int) ([]*models.Send, int, error) {
	var wb whereBuilder
	if filter.UserID != nil {
		wb.And("user_id", "=", *filter.UserID)
	}
	if filter.State != nil {
		wb.And("state", "=", *filter.State)
	}

	where := wb.Clause()
	pag, args := wb.Paginate(limit, offset)

	rows, err := s.db.Query(ctx,
		`SELECT`+sendColumns+` FROM main_sends `+where+` ORDER BY create_datetime DESC `+pag,
		args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select sends")
	}
	defer rows.Close()

	var out []*models.Send
	for rows.Next() {
		send, err := s.scanSend(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan send")
		}
		out = append(out, send)
	}
	if rows.Err() != nil {
		return nil, 0, errors.Wrap(rows.Err(), "rows")
	}

	// Отдельный count под те же фильтры.
	var total int
	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM main_sends `+where,
		wb.args...).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count sends")
	}

	return out, total, nil
}

// ListSendsForUser отдаёт все sends владельца (или вообще все при
// userID == nil — админский просмотр), новые сверху.
func (s *Storage) ListSendsForUser(ctx context.Context, userID *uint64) ([]*models.Send, error) {
	var wb whereBuilder
	if userID != nil {
		wb.And("user_id", "=", *userID)
	}

	rows, err := s.db.Query(ctx,
		`SELECT`+sendColumns+` FROM main_sends `+wb.Clause()+` ORDER BY create_datetime DESC`,
		wb.args...)
	if err != nil {
		return nil, errors.Wrap(err, "select sends")
	}
	defer rows.Close()

	var out []*models.Send
	for rows.Next() {
		send, err := s.scanSend(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan send")
		}
		out = append(out, send)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// FindActiveSendByDriver ищет другой send этого водителя в состоянии
// ожидания или транзита. nil — водитель свободен.
func (s *Storage) FindActiveSendByDriver(ctx context.Context, driverID, excludeSendID uint64) (*models.DriverConflict, error) {
	row := s.db.QueryRow(ctx, `
SELECT ms.unique_id, ms.reference, d.name
FROM main_sends ms
JOIN main_drivers d ON d.id = ms.driver_id
WHERE ms.driver_id = $1
  AND ms.state IN ($2, $3)
  AND ms.id <> $4
LIMIT 1
`, driverID, models.SendStateWaiting, models.SendStateInTransit, excludeSendID)

	var c models.DriverConflict
	err := row.Scan(&c.SendUniqueID, &c.SendReference, &c.DriverName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select driver conflict")
	}
	return &c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Storage) scanSend(sc scanner) (*models.Send, error) {
	var m models.Send
	var createAt time.Time
	var transitAt, deliverAt *time.Time
	if err := sc.Scan(
		&m.ID, &m.UserID, &m.UniqueID, &m.RouteID, &m.DriverID,
		&m.Reference, &m.Address, &m.Width, &m.Height, &m.Length,
		&m.Units, &m.State,
		&createAt, &transitAt, &deliverAt,
	); err != nil {
		return nil, err
	}

	m.CreateDatetime = models.NewLocalTime(createAt.In(s.loc))
	if transitAt != nil {
		t := models.NewLocalTime(transitAt.In(s.loc))
		m.TransitDatetime = &t
	}
	if deliverAt != nil {
		t := models.NewLocalTime(deliverAt.In(s.loc))
		m.DeliverDatetime = &t
	}
	return &m, nil
}
