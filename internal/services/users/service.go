package users

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/BearBump/SendBox/internal/services/refuse"
	"github.com/BearBump/SendBox/internal/storage/pgsend"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*pgsend.UserWithPassword, error)
	UserEmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, name, email, passwordHash string, rolID int) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
}

// TokenIssuer выпускает токен, привязанный к origin (ip клиента).
type TokenIssuer interface {
	Create(data models.AuthUser, origin string) (string, error)
}

type Broadcaster interface {
	ToAll(event string, payload any)
}

type Service struct {
	repo     Repository
	tokens   TokenIssuer
	notifier Broadcaster

	now func() time.Time
}

func New(repo Repository, tokens TokenIssuer, n Broadcaster) *Service {
	return &Service{repo: repo, tokens: tokens, notifier: n, now: time.Now}
}

const (
	bcryptCost = 12

	defaultRole = 2

	defaultLimit = 20
	maxPageLimit = 100
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Name == "" {
		return nil, refuse.New(400, "name is required")
	}
	if in.Email == "" {
		return nil, refuse.New(400, "email is required")
	}
	if !emailRe.MatchString(in.Email) {
		return nil, refuse.New(400, "email must be a valid email")
	}
	if len(in.Password) < 8 {
		return nil, refuse.New(400, "password length must be at least 8 characters long")
	}

	// Быстрый отказ; настоящую уникальность держит constraint в БД.
	exists, err := s.repo.UserEmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, refuse.New(400, "user-exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, in.Name, in.Email, string(hash), defaultRole)
	if err != nil {
		if errors.Is(err, pgsend.ErrDuplicate) {
			return nil, refuse.New(400, "user-exists")
		}
		return nil, err
	}

	s.notifier.ToAll("user-registered", map[string]any{
		"message":   "new-user-registered",
		"userEmail": user.Email,
		"userName":  user.Name,
		"timestamp": s.now().Format(time.RFC3339),
	})
	return user, nil
}

// Login возвращает токен и профиль без пароля. Несуществующий email и
// неверный пароль дают один и тот же тег, но разные коды — так ведёт
// себя клиентский контракт.
func (s *Service) Login(ctx context.Context, email, password, origin string) (string, *models.User, error) {
	if email == "" {
		return "", nil, refuse.New(400, "email is required")
	}
	if !emailRe.MatchString(email) {
		return "", nil, refuse.New(400, "email must be a valid email")
	}
	if len(password) < 6 {
		return "", nil, refuse.New(400, "password length must be at least 6 characters long")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, refuse.New(401, "user-pass-unk")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, refuse.New(400, "user-pass-unk")
	}

	token, err := s.tokens.Create(models.AuthUser{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		RolID: user.RolID,
	}, origin)
	if err != nil {
		return "", nil, err
	}
	return token, &user.User, nil
}

func (s *Service) ListUsers(ctx context.Context, page, limit int) ([]*models.User, models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	rows, total, err := s.repo.ListUsers(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return rows, models.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}
