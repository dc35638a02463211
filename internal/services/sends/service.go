package sends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/BearBump/SendBox/internal/services/refuse"
	"github.com/BearBump/SendBox/internal/storage/pgsend"
)

type Repository interface {
	CreateSend(ctx context.Context, in pgsend.SendInsert) (*models.Send, error)
	GetSendByID(ctx context.Context, id uint64) (*models.Send, error)
	GetSendByUniqueID(ctx context.Context, uniqueID int64) (*models.Send, error)
	UpdateSend(ctx context.Context, id uint64, patch pgsend.SendPatch) (*models.Send, error)
	ListSendsFiltered(ctx context.Context, filter models.SendFilter, limit, offset int) ([]*models.Send, int, error)
	ListSendsForUser(ctx context.Context, userID *uint64) ([]*models.Send, error)
	FindActiveSendByDriver(ctx context.Context, driverID, excludeSendID uint64) (*models.DriverConflict, error)
	GetRouteVehicle(ctx context.Context, routeID uint64) (*models.RouteVehicle, error)
	DriverExists(ctx context.Context, driverID uint64) (bool, error)
	GetUserContact(ctx context.Context, userID uint64) (email, name string, err error)
	Location() *time.Location
}

// Notifier доставляет событие владельцу send'а; отказ доставки не ошибка.
type Notifier interface {
	ToUser(email, event string, payload any) bool
}

// BytesCache — снапшот текущего состояния для публичного трекинга.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Service struct {
	repo       Repository
	notifier   Notifier
	cache      BytesCache
	currentTTL time.Duration

	now func() time.Time
}

func New(repo Repository, n Notifier, c BytesCache, currentTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		notifier:   n,
		cache:      c,
		currentTTL: currentTTL,
		now:        time.Now,
	}
}

const (
	defaultUnits = 1
	maxPageLimit = 100
	defaultLimit = 20
)

func (s *Service) CreateSend(ctx context.Context, actor *models.AuthUser, in models.SendCreateInput) (*models.Send, error) {
	if in.Reference == "" {
		return nil, refuse.New(400, "reference is required")
	}
	if in.Address == "" {
		return nil, refuse.New(400, "address is required")
	}
	if in.Width <= 0 {
		return nil, refuse.New(400, "width must be a positive number")
	}
	if in.Height <= 0 {
		return nil, refuse.New(400, "height must be a positive number")
	}
	if in.Length <= 0 {
		return nil, refuse.New(400, "length must be a positive number")
	}

	units := defaultUnits
	if in.Units != nil {
		if *in.Units < 1 {
			return nil, refuse.New(400, "units must be a positive number")
		}
		units = *in.Units
	}

	// Назначение маршрута/водителя при создании проходит те же проверки,
	// что и при обновлении.
	if err := s.validateAssignment(ctx, in.RouteID, in.DriverID, units, 0); err != nil {
		return nil, err
	}

	now := s.now().In(s.repo.Location())
	var userID *uint64
	if actor != nil {
		userID = &actor.ID
	}

	send, err := s.repo.CreateSend(ctx, pgsend.SendInsert{
		UserID:         userID,
		UniqueID:       now.UnixNano(),
		RouteID:        in.RouteID,
		DriverID:       in.DriverID,
		Reference:      in.Reference,
		Address:        in.Address,
		Width:          in.Width,
		Height:         in.Height,
		Length:         in.Length,
		Units:          units,
		State:          models.SendStateWaiting,
		CreateDatetime: now,
	})
	if err != nil {
		return nil, err
	}

	if actor != nil {
		s.notifier.ToUser(actor.Email, "new-send-notification", map[string]any{
			"message":   "new-send-created",
			"uniqueId":  send.UniqueID,
			"reference": send.Reference,
			"timestamp": now.Format(time.RFC3339),
		})
	}
	return send, nil
}

func (s *Service) UpdateSend(ctx context.Context, actor *models.AuthUser, id uint64, in models.SendUpdateInput) (*models.Send, error) {
	if id == 0 {
		return nil, refuse.New(400, "invalid-send-id")
	}
	if in.Empty() {
		return nil, refuse.New(400, "no-fields-to-update")
	}
	if in.State != nil && (*in.State < models.SendStateWaiting || *in.State > models.SendStateCancelled) {
		return nil, refuse.New(400, "state must be between 1 and 4")
	}
	if in.Units != nil && *in.Units < 1 {
		return nil, refuse.New(400, "units must be a positive number")
	}

	send, err := s.repo.GetSendByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if send == nil {
		return nil, refuse.New(404, "send-not-found")
	}
	if actor == nil || (!actor.IsAdmin() && (send.UserID == nil || *send.UserID != actor.ID)) {
		return nil, refuse.New(403, "insufficient-permissions")
	}

	units := send.Units
	if in.Units != nil {
		units = *in.Units
	}
	if units < 1 {
		units = defaultUnits
	}
	if err := s.validateAssignment(ctx, in.RouteID, in.DriverID, units, send.ID); err != nil {
		return nil, err
	}

	// Назначение маршрута или водителя само по себе переводит ожидающий
	// send в transit; явный state в patch'е всегда побеждает.
	finalState := send.State
	stateWritten := false
	if (in.RouteID != nil || in.DriverID != nil) && send.State == models.SendStateWaiting && in.State == nil {
		finalState = models.SendStateInTransit
		stateWritten = true
	}
	if in.State != nil {
		finalState = *in.State
		stateWritten = true
	}

	now := s.now().In(s.repo.Location())
	patch := pgsend.SendPatch{
		Units:    in.Units,
		RouteID:  in.RouteID,
		DriverID: in.DriverID,
	}
	if stateWritten {
		patch.State = &finalState
	}
	// Датавремя перезаписывается при каждом попадании в состояние,
	// а не только при первом.
	switch finalState {
	case models.SendStateInTransit:
		patch.TransitDatetime = &now
	case models.SendStateDelivered:
		patch.DeliverDatetime = &now
	}

	updated, err := s.repo.UpdateSend(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, refuse.New(404, "send-not-found")
	}

	s.invalidateCurrent(ctx, updated.UniqueID)
	s.notifyOwner(ctx, actor, updated)
	return updated, nil
}

// validateAssignment проверяет бизнес-правила назначения маршрута и водителя.
func (s *Service) validateAssignment(ctx context.Context, routeID, driverID *uint64, units int, excludeSendID uint64) error {
	if routeID != nil {
		rv, err := s.repo.GetRouteVehicle(ctx, *routeID)
		if err != nil {
			return err
		}
		if rv == nil {
			return refuse.New(400, "route-not-found")
		}
		if rv.Capacity == nil {
			return refuse.New(400, "route-has-no-vehicle-assigned")
		}
		if units > *rv.Capacity {
			return refuse.WithData(400, "vehicle-capacity-exceeded", map[string]any{
				"vehicleCapacity": *rv.Capacity,
				"sendUnits":       units,
				"vehicleBrand":    rv.Brand,
				"vehicleCode":     rv.Code,
			})
		}
	}

	if driverID != nil {
		conflict, err := s.repo.FindActiveSendByDriver(ctx, *driverID, excludeSendID)
		if err != nil {
			return err
		}
		if conflict != nil {
			return refuse.WithData(400, "driver-not-available", map[string]any{
				"driverName":               conflict.DriverName,
				"conflictingSendId":        conflict.SendUniqueID,
				"conflictingSendReference": conflict.SendReference,
			})
		}
		exists, err := s.repo.DriverExists(ctx, *driverID)
		if err != nil {
			return err
		}
		if !exists {
			return refuse.New(400, "driver-not-found")
		}
	}
	return nil
}

func (s *Service) notifyOwner(ctx context.Context, actor *models.AuthUser, send *models.Send) {
	if send.UserID == nil {
		return
	}
	email, _, err := s.repo.GetUserContact(ctx, *send.UserID)
	if err != nil {
		slog.Warn("resolve send owner contact", "send_id", send.ID, "err", err)
		return
	}
	s.notifier.ToUser(email, "send-updated-notification", map[string]any{
		"state":     send.State,
		"uniqueId":  send.UniqueID,
		"updatedBy": actor.Name,
		"timestamp": s.now().In(s.repo.Location()).Format(time.RFC3339),
	})
}

func (s *Service) ListFiltered(ctx context.Context, actor *models.AuthUser, filter models.SendFilter, page, limit int) ([]*models.Send, models.Pagination, error) {
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
	// Не-админ видит только свои send'ы независимо от фильтра.
	if actor != nil && !actor.IsAdmin() {
		filter.UserID = &actor.ID
	}

	rows, total, err := s.repo.ListSendsFiltered(ctx, filter, limit, (page-1)*limit)
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

// ListForUser — авторизованный список для личного кабинета: админ видит всё.
func (s *Service) ListForUser(ctx context.Context, actor *models.AuthUser) ([]*models.Send, error) {
	if actor.IsAdmin() {
		return s.repo.ListSendsForUser(ctx, nil)
	}
	return s.repo.ListSendsForUser(ctx, &actor.ID)
}

// TrackByUniqueID — публичный трекинг по коду, без авторизации.
func (s *Service) TrackByUniqueID(ctx context.Context, uniqueID int64) (*models.Send, error) {
	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, currentKey(uniqueID)); err == nil && ok {
			var send models.Send
			if json.Unmarshal(b, &send) == nil {
				return &send, nil
			}
		}
	}

	send, err := s.repo.GetSendByUniqueID(ctx, uniqueID)
	if err != nil {
		return nil, err
	}
	if send == nil {
		return nil, refuse.New(404, "tracking-not-found")
	}

	if s.cache != nil && s.currentTTL > 0 {
		if b, err := json.Marshal(send); err == nil {
			if err := s.cache.Set(ctx, currentKey(uniqueID), b, s.currentTTL); err != nil {
				slog.Warn("cache tracking snapshot", "unique_id", uniqueID, "err", err)
			}
		}
	}
	return send, nil
}

// TrackByUniqueIDAuth дополнительно проверяет авторство.
func (s *Service) TrackByUniqueIDAuth(ctx context.Context, actor *models.AuthUser, uniqueID int64) (*models.Send, error) {
	send, err := s.repo.GetSendByUniqueID(ctx, uniqueID)
	if err != nil {
		return nil, err
	}
	if send == nil {
		return nil, refuse.New(404, "tracking-not-found")
	}
	if !actor.IsAdmin() && (send.UserID == nil || *send.UserID != actor.ID) {
		return nil, refuse.New(403, "tracking-access-denied")
	}
	return send, nil
}

func (s *Service) invalidateCurrent(ctx context.Context, uniqueID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, currentKey(uniqueID)); err != nil {
		slog.Warn("invalidate tracking snapshot", "unique_id", uniqueID, "err", err)
	}
}

func currentKey(uniqueID int64) string {
	return fmt.Sprintf("send:%d:current", uniqueID)
}
