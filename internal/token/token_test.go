package token

import (
	"testing"
	"time"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := New("s3cret", "http://localhost:8080")

	user := models.AuthUser{ID: 7, Name: "Ana", Email: "ana@example.com", RolID: 2}
	tok, err := m.Create(user, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	got, err := m.Decode(tok, "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, user, *got)
}

func TestManager_OriginMismatch(t *testing.T) {
	m := New("s3cret", "http://localhost:8080")

	tok, err := m.Create(models.AuthUser{ID: 1, Email: "a@b.c"}, "10.0.0.1")
	require.NoError(t, err)

	_, err = m.Decode(tok, "10.0.0.2")
	require.Error(t, err)
}

func TestManager_EmptyPayload(t *testing.T) {
	m := New("s3cret", "http://localhost:8080")
	_, err := m.Create(models.AuthUser{}, "10.0.0.1")
	require.Error(t, err)
}

func TestManager_WrongSecret(t *testing.T) {
	m := New("s3cret", "http://localhost:8080")
	tok, err := m.Create(models.AuthUser{ID: 1, Email: "a@b.c"}, "10.0.0.1")
	require.NoError(t, err)

	other := New("another", "http://localhost:8080")
	_, err = other.Decode(tok, "10.0.0.1")
	require.Error(t, err)
}

func TestManager_Expired(t *testing.T) {
	m := New("s3cret", "http://localhost:8080")
	tok, err := m.Create(models.AuthUser{ID: 1, Email: "a@b.c"}, "10.0.0.1")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(13 * time.Hour) }
	_, err = m.Decode(tok, "10.0.0.1")
	require.Error(t, err)
}
