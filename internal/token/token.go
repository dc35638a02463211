package token

import (
	"slices"
	"time"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	subject = "Login"
	// Токен живёт 12 часов с момента выдачи.
	tokenTTL = 12 * time.Hour
)

type Claims struct {
	Data models.AuthUser `json:"data"`
	jwt.RegisteredClaims
}

// Manager выпускает и проверяет HS256 bearer-токены. Audience привязывает
// токен к origin-метке вызывающего (обычно его сетевой адрес).
type Manager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func New(secret, issuer string) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (m *Manager) Create(data models.AuthUser, origin string) (string, error) {
	if data.Email == "" {
		return "", errors.New("empty token payload")
	}
	now := m.now()
	claims := Claims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{origin},
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Decode проверяет подпись и срок действия, затем требует, чтобы audience
// содержал переданный origin. Любая ошибка — отказ, без деталей наружу.
func (m *Manager) Decode(tokenStr, origin string) (*models.AuthUser, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if !slices.Contains(claims.Audience, origin) {
		return nil, errors.New("token audience mismatch")
	}
	return &claims.Data, nil
}
