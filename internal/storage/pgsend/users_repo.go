package pgsend

import (
	"context"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// UserWithPassword — строка main_users вместе с bcrypt-хэшем; наружу из
// сервисного слоя не выходит.
type UserWithPassword struct {
	models.User
	PasswordHash string
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*UserWithPassword, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, name, email, password, rol_id FROM main_users WHERE email = $1`, email)

	var u UserWithPassword
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.RolID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user by email")
	}
	return &u, nil
}

func (s *Storage) UserEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM main_users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check user email")
	}
	return exists, nil
}

func (s *Storage) CreateUser(ctx context.Context, name, email, passwordHash string, rolID int) (*models.User, error) {
	row := s.db.QueryRow(ctx, `
INSERT INTO main_users (name, email, password, rol_id)
VALUES ($1, $2, $3, $4)
RETURNING id, name, email, rol_id
`, name, email, passwordHash, rolID)

	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.RolID)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return &u, nil
}

// GetUserContact отдаёт email и имя владельца для адресной нотификации.
func (s *Storage) GetUserContact(ctx context.Context, userID uint64) (email, name string, err error) {
	err = s.db.QueryRow(ctx,
		`SELECT email, name FROM main_users WHERE id = $1`, userID).Scan(&email, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", errors.Wrap(err, "select user contact")
	}
	return email, name, nil
}

func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, name, email, rol_id
FROM main_users
ORDER BY id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.RolID); err != nil {
			return nil, 0, errors.Wrap(err, "scan user")
		}
		out = append(out, &u)
	}
	if rows.Err() != nil {
		return nil, 0, errors.Wrap(rows.Err(), "rows")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM main_users`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}
	return out, total, nil
}
