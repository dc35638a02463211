package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/BearBump/SendBox/internal/services/drivers"
	"github.com/BearBump/SendBox/internal/services/routes"
	"github.com/BearBump/SendBox/internal/services/sends"
	"github.com/BearBump/SendBox/internal/services/users"
	"github.com/BearBump/SendBox/internal/storage/pgsend"
	"github.com/BearBump/SendBox/internal/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeStore реализует репозитории всех сервисов поверх пары map'ов.
type fakeStore struct {
	sendsByID  map[uint64]*models.Send
	sendsByUID map[int64]*models.Send
	usersEmail map[string]*pgsend.UserWithPassword
	drivers    []*models.Driver
	routes     []*models.Route

	nextID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sendsByID:  map[uint64]*models.Send{},
		sendsByUID: map[int64]*models.Send{},
		usersEmail: map[string]*pgsend.UserWithPassword{},
		nextID:     1,
	}
}

func (f *fakeStore) CreateSend(ctx context.Context, in pgsend.SendInsert) (*models.Send, error) {
	s := &models.Send{
		ID: f.nextID, UserID: in.UserID, UniqueID: in.UniqueID,
		RouteID: in.RouteID, DriverID: in.DriverID,
		Reference: in.Reference, Address: in.Address,
		Width: in.Width, Height: in.Height, Length: in.Length,
		Units: in.Units, State: in.State,
		CreateDatetime: models.NewLocalTime(in.CreateDatetime),
	}
	f.nextID++
	f.sendsByID[s.ID] = s
	f.sendsByUID[s.UniqueID] = s
	return s, nil
}
func (f *fakeStore) GetSendByID(ctx context.Context, id uint64) (*models.Send, error) {
	return f.sendsByID[id], nil
}
func (f *fakeStore) GetSendByUniqueID(ctx context.Context, uid int64) (*models.Send, error) {
	return f.sendsByUID[uid], nil
}
func (f *fakeStore) UpdateSend(ctx context.Context, id uint64, patch pgsend.SendPatch) (*models.Send, error) {
	s := f.sendsByID[id]
	if s == nil {
		return nil, nil
	}
	if patch.State != nil {
		s.State = *patch.State
	}
	if patch.Units != nil {
		s.Units = *patch.Units
	}
	if patch.RouteID != nil {
		s.RouteID = patch.RouteID
	}
	if patch.DriverID != nil {
		s.DriverID = patch.DriverID
	}
	if patch.TransitDatetime != nil {
		lt := models.NewLocalTime(*patch.TransitDatetime)
		s.TransitDatetime = &lt
	}
	if patch.DeliverDatetime != nil {
		lt := models.NewLocalTime(*patch.DeliverDatetime)
		s.DeliverDatetime = &lt
	}
	return s, nil
}
func (f *fakeStore) ListSendsFiltered(ctx context.Context, filter models.SendFilter, limit, offset int) ([]*models.Send, int, error) {
	var out []*models.Send
	for _, s := range f.sendsByID {
		if filter.UserID != nil && (s.UserID == nil || *s.UserID != *filter.UserID) {
			continue
		}
		if filter.State != nil && s.State != *filter.State {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}
func (f *fakeStore) ListSendsForUser(ctx context.Context, userID *uint64) ([]*models.Send, error) {
	var out []*models.Send
	for _, s := range f.sendsByID {
		if userID != nil && (s.UserID == nil || *s.UserID != *userID) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeStore) FindActiveSendByDriver(ctx context.Context, driverID, excludeSendID uint64) (*models.DriverConflict, error) {
	for _, s := range f.sendsByID {
		if s.ID == excludeSendID || s.DriverID == nil || *s.DriverID != driverID {
			continue
		}
		if s.State != models.SendStateWaiting && s.State != models.SendStateInTransit {
			continue
		}
		return &models.DriverConflict{SendUniqueID: s.UniqueID, SendReference: s.Reference, DriverName: "Juan"}, nil
	}
	return nil, nil
}
func (f *fakeStore) GetRouteVehicle(ctx context.Context, routeID uint64) (*models.RouteVehicle, error) {
	for _, r := range f.routes {
		if r.ID != routeID {
			continue
		}
		rv := &models.RouteVehicle{RouteID: r.ID}
		if r.Vehicle != nil {
			rv.Capacity = &r.Vehicle.Capacity
			rv.Brand = &r.Vehicle.Brand
			rv.Code = &r.Vehicle.Code
		}
		return rv, nil
	}
	return nil, nil
}
func (f *fakeStore) DriverExists(ctx context.Context, driverID uint64) (bool, error) {
	for _, d := range f.drivers {
		if d.ID == driverID {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeStore) GetUserContact(ctx context.Context, userID uint64) (string, string, error) {
	for _, u := range f.usersEmail {
		if u.ID == userID {
			return u.Email, u.Name, nil
		}
	}
	return "", "", nil
}
func (f *fakeStore) Location() *time.Location { return time.UTC }

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*pgsend.UserWithPassword, error) {
	return f.usersEmail[email], nil
}
func (f *fakeStore) UserEmailExists(ctx context.Context, email string) (bool, error) {
	_, ok := f.usersEmail[email]
	return ok, nil
}
func (f *fakeStore) CreateUser(ctx context.Context, name, email, passwordHash string, rolID int) (*models.User, error) {
	u := &models.User{ID: f.nextID, Name: name, Email: email, RolID: rolID}
	f.nextID++
	f.usersEmail[email] = &pgsend.UserWithPassword{User: *u, PasswordHash: passwordHash}
	return u, nil
}
func (f *fakeStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	var out []*models.User
	for _, u := range f.usersEmail {
		out = append(out, &u.User)
	}
	return out, len(out), nil
}

func (f *fakeStore) ListDrivers(ctx context.Context) ([]*models.Driver, error) { return f.drivers, nil }
func (f *fakeStore) DriverCifnifExists(ctx context.Context, cifnif string) (bool, error) {
	for _, d := range f.drivers {
		if d.Cifnif == cifnif {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeStore) CreateDriver(ctx context.Context, cifnif, name string) (*models.Driver, error) {
	d := &models.Driver{ID: f.nextID, Cifnif: cifnif, Name: name}
	f.nextID++
	f.drivers = append(f.drivers, d)
	return d, nil
}
func (f *fakeStore) ListRoutesWithVehicles(ctx context.Context) ([]*models.Route, error) {
	return f.routes, nil
}

type fakeNotifier struct {
	events    []string
	connected []string
}

func (n *fakeNotifier) ToAll(event string, payload any) { n.events = append(n.events, event) }
func (n *fakeNotifier) ToUser(email, event string, payload any) bool {
	n.events = append(n.events, event)
	for _, e := range n.connected {
		if e == email {
			return true
		}
	}
	return false
}
func (n *fakeNotifier) ConnectedUsers() []string { return n.connected }
func (n *fakeNotifier) IsUserConnected(email string) bool {
	for _, e := range n.connected {
		if e == email {
			return true
		}
	}
	return false
}

type testEnv struct {
	srv      *httptest.Server
	store    *fakeStore
	notifier *fakeNotifier
	tokens   *token.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	tm := token.New("test-secret", "http://localhost")

	h := NewRouter(Deps{
		Sends:    sends.New(store, notifier, nil, 0),
		Users:    users.New(store, tm, notifier),
		Drivers:  drivers.New(store),
		Routes:   routes.New(store),
		Notifier: notifier,
		Tokens:   tm,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, notifier: notifier, tokens: tm}
}

type envBody struct {
	Code       int                `json:"code"`
	Text       string             `json:"text"`
	Message    string             `json:"message"`
	Token      string             `json:"token"`
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
}

func doReq(t *testing.T, method, url, bearer string, body any) (int, envBody) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// seedUser кладёт пользователя в стор и возвращает токен, привязанный
// к ip тестового клиента (127.0.0.1).
func (e *testEnv) seedUser(t *testing.T, name, email string, rolID int) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := e.store.CreateUser(context.Background(), name, email, string(hash), rolID)
	require.NoError(t, err)

	tok, err := e.tokens.Create(models.AuthUser{ID: u.ID, Name: u.Name, Email: u.Email, RolID: u.RolID}, "127.0.0.1")
	require.NoError(t, err)
	return tok
}

func TestRouter_pingRoutes(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/api/login/", "/api/sends/", "/api/home/", "/api/drivers/", "/api/general/", "/api/users/"} {
		status, env := doReq(t, http.MethodGet, e.srv.URL+path, "", nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, 200, env.Code)
		require.Contains(t, env.Message, "controller Ready!")
	}
}

func TestRouter_loginFlow(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "Ana", "ana@example.com", 2)

	// неверный пароль -> конверт 400, HTTP всё равно 200
	status, env := doReq(t, http.MethodPost, e.srv.URL+"/api/login/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 400, env.Code)
	require.Equal(t, "user-pass-unk", env.Text)

	status, env = doReq(t, http.MethodPost, e.srv.URL+"/api/login/login", "", map[string]string{
		"email": "ana@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 200, env.Code)
	require.Equal(t, "session-started", env.Text)
	require.NotEmpty(t, env.Token)

	// выданный токен проходит auth middleware
	_, env = doReq(t, http.MethodGet, e.srv.URL+"/api/drivers/drivers", env.Token, nil)
	require.Equal(t, 200, env.Code)
	require.Equal(t, "drivers-retrieved", env.Text)
}

func TestRouter_register(t *testing.T) {
	e := newTestEnv(t)

	_, env := doReq(t, http.MethodPost, e.srv.URL+"/api/login/register", "", map[string]string{
		"name": "Nuevo Usuario", "email": "nuevo@mail.com", "password": "password123",
	})
	require.Equal(t, 201, env.Code)
	require.Equal(t, "user-created", env.Text)
	require.Equal(t, []string{"user-registered"}, e.notifier.events)

	_, env = doReq(t, http.MethodPost, e.srv.URL+"/api/login/register", "", map[string]string{
		"name": "Otra Vez", "email": "nuevo@mail.com", "password": "password123",
	})
	require.Equal(t, 400, env.Code)
	require.Equal(t, "user-exists", env.Text)
}

func TestRouter_authRequired(t *testing.T) {
	e := newTestEnv(t)

	_, env := doReq(t, http.MethodPost, e.srv.URL+"/api/sends/create", "", nil)
	require.Equal(t, 401, env.Code)
	require.Equal(t, "Unauthorized", env.Text)

	_, env = doReq(t, http.MethodPost, e.srv.URL+"/api/sends/create", "not-a-token", nil)
	require.Equal(t, 401, env.Code)
}

func TestRouter_sendLifecycle(t *testing.T) {
	e := newTestEnv(t)
	tok := e.seedUser(t, "Ana", "ana@example.com", 2)
	e.notifier.connected = []string{"ana@example.com"}

	_, env := doReq(t, http.MethodPost, e.srv.URL+"/api/sends/create", tok, map[string]any{
		"reference": "REF123", "address": "Calle 123",
		"width": 10.0, "height": 20.0, "length": 30.0,
	})
	require.Equal(t, 200, env.Code)
	require.Equal(t, "send-created", env.Text)

	var created models.Send
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, models.SendStateWaiting, created.State)
	require.NotZero(t, created.UniqueID)
	require.Contains(t, e.notifier.events, "new-send-notification")

	// назначение водителя: auto-transition waiting -> in-transit
	_, err := e.store.CreateDriver(context.Background(), "12345678A", "Juan")
	require.NoError(t, err)
	driverID := e.store.drivers[0].ID

	_, env = doReq(t, http.MethodPut, e.srv.URL+"/api/sends/update/"+jsonNumber(created.ID), tok, map[string]any{
		"driver_id": driverID,
	})
	require.Equal(t, 200, env.Code)
	require.Equal(t, "send-updated", env.Text)

	var updated models.Send
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.Equal(t, models.SendStateInTransit, updated.State)
	require.NotNil(t, updated.TransitDatetime)
	require.Contains(t, e.notifier.events, "send-updated-notification")

	// публичный трекинг без токена
	_, env = doReq(t, http.MethodGet, e.srv.URL+"/api/home/tracking/"+jsonNumber(uint64(created.UniqueID)), "", nil)
	require.Equal(t, 200, env.Code)
	require.Equal(t, "tracking-found", env.Message)

	_, env = doReq(t, http.MethodGet, e.srv.URL+"/api/home/tracking/999", "", nil)
	require.Equal(t, 404, env.Code)
	require.Equal(t, "tracking-not-found", env.Text)

	_, env = doReq(t, http.MethodPost, e.srv.URL+"/api/sends/getSendsFiltered", tok, map[string]any{
		"page": 1, "limit": 10, "filters": map[string]any{"state": models.SendStateInTransit},
	})
	require.Equal(t, 200, env.Code)
	require.Equal(t, "sends-filtered", env.Message)
	require.NotNil(t, env.Pagination)
	require.Equal(t, 1, env.Pagination.Total)
}

func TestRouter_updateInvalidID(t *testing.T) {
	e := newTestEnv(t)
	tok := e.seedUser(t, "Ana", "ana@example.com", 2)

	_, env := doReq(t, http.MethodPut, e.srv.URL+"/api/sends/update/abc", tok, map[string]any{"state": 2})
	require.Equal(t, 400, env.Code)
	require.Equal(t, "invalid-send-id", env.Text)

	_, env = doReq(t, http.MethodPut, e.srv.URL+"/api/sends/update/0", tok, map[string]any{"state": 2})
	require.Equal(t, 400, env.Code)
	require.Equal(t, "invalid-send-id", env.Text)
}

func TestRouter_trackingAuth(t *testing.T) {
	e := newTestEnv(t)
	ownerTok := e.seedUser(t, "Ana", "ana@example.com", 2)
	strangerTok := e.seedUser(t, "Otro", "otro@example.com", 2)

	_, env := doReq(t, http.MethodPost, e.srv.URL+"/api/sends/create", ownerTok, map[string]any{
		"reference": "REF123", "address": "Calle 123",
		"width": 10.0, "height": 20.0, "length": 30.0,
	})
	require.Equal(t, 200, env.Code)
	var created models.Send
	require.NoError(t, json.Unmarshal(env.Data, &created))

	url := e.srv.URL + "/api/home/tracking-auth/" + jsonNumber(uint64(created.UniqueID))
	_, env = doReq(t, http.MethodGet, url, ownerTok, nil)
	require.Equal(t, 200, env.Code)

	_, env = doReq(t, http.MethodGet, url, strangerTok, nil)
	require.Equal(t, 403, env.Code)
	require.Equal(t, "tracking-access-denied", env.Text)
}

func TestRouter_notifications(t *testing.T) {
	e := newTestEnv(t)
	e.notifier.connected = []string{"ana@example.com"}

	_, env := doReq(t, http.MethodPost, e.srv.URL+"/api/notifications/broadcast", "", map[string]any{})
	require.Equal(t, 400, env.Code)
	require.Equal(t, "message-required", env.Text)

	_, env = doReq(t, http.MethodPost, e.srv.URL+"/api/notifications/broadcast", "", map[string]any{"message": "hola"})
	require.Equal(t, 200, env.Code)
	require.Equal(t, "notification-sent", env.Text)

	_, env = doReq(t, http.MethodPost, e.srv.URL+"/api/notifications/private", "", map[string]any{
		"email": "ana@example.com", "message": "hola",
	})
	require.Equal(t, 200, env.Code)
	require.Equal(t, "private-message-sent", env.Text)

	_, env = doReq(t, http.MethodPost, e.srv.URL+"/api/notifications/private", "", map[string]any{
		"email": "nadie@example.com", "message": "hola",
	})
	require.Equal(t, 200, env.Code)
	require.Equal(t, "user-not-connected", env.Text)

	_, env = doReq(t, http.MethodGet, e.srv.URL+"/api/notifications/connected-users", "", nil)
	require.Equal(t, 200, env.Code)
	require.Equal(t, "connected-users-retrieved", env.Text)

	_, env = doReq(t, http.MethodGet, e.srv.URL+"/api/notifications/user-status/ana@example.com", "", nil)
	require.Equal(t, 200, env.Code)
	require.Equal(t, "user-status-retrieved", env.Text)
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	return false, limit + 1, nil
}

func TestRouter_rateLimited(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	tm := token.New("test-secret", "http://localhost")
	h := NewRouter(Deps{
		Sends:    sends.New(store, notifier, nil, 0),
		Users:    users.New(store, tm, notifier),
		Drivers:  drivers.New(store),
		Routes:   routes.New(store),
		Notifier: notifier,
		Tokens:   tm,
		Limiter:  denyLimiter{},
		Limits:   RateLimits{GeneralPer15Min: 100},
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	status, env := doReq(t, http.MethodGet, srv.URL+"/api/login/", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 429, env.Code)
}

func jsonNumber(v uint64) string {
	return strconv.FormatUint(v, 10)
}
