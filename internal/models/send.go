package models

import (
	"encoding/json"
	"time"
)

// Коды состояний — публичный контракт API.
const (
	SendStateWaiting   = 1
	SendStateInTransit = 2
	SendStateDelivered = 3
	SendStateCancelled = 4
)

const DatetimeLayout = "2006-01-02 15:04:05"

// LocalTime сериализуется как "YYYY-MM-DD HH:mm:ss" в зоне, в которой создана.
// Зона в строку не кодируется, поэтому разбор детерминированно идёт в UTC:
// wall-clock сохраняется, и повторная сериализация даёт ту же строку.
type LocalTime struct {
	time.Time
}

func NewLocalTime(t time.Time) LocalTime {
	return LocalTime{t}
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(DatetimeLayout))
}

func (t *LocalTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(DatetimeLayout, s, time.UTC)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

type Send struct {
	ID       uint64  `json:"id"`
	UserID   *uint64 `json:"user_id"`
	UniqueID int64   `json:"unique_id"`
	RouteID  *uint64 `json:"route_id"`
	DriverID *uint64 `json:"driver_id"`

	Reference string  `json:"reference"`
	Address   string  `json:"address"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Length    float64 `json:"length"`

	Units int `json:"units"`
	State int `json:"state"`

	CreateDatetime  LocalTime  `json:"create_datetime"`
	TransitDatetime *LocalTime `json:"transit_datetime"`
	DeliverDatetime *LocalTime `json:"deliver_datetime"`
}

type SendCreateInput struct {
	Reference string  `json:"reference"`
	Address   string  `json:"address"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Length    float64 `json:"length"`

	Units    *int    `json:"units"`
	RouteID  *uint64 `json:"route_id"`
	DriverID *uint64 `json:"driver_id"`
}

// SendUpdateInput — patch для операции update. Описательные поля
// (reference, address, габариты) после создания не меняются.
type SendUpdateInput struct {
	State    *int    `json:"state"`
	Units    *int    `json:"units"`
	RouteID  *uint64 `json:"route_id"`
	DriverID *uint64 `json:"driver_id"`
}

func (p SendUpdateInput) Empty() bool {
	return p.State == nil && p.Units == nil && p.RouteID == nil && p.DriverID == nil
}

// Pagination — блок пагинации в конверте ответа.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type SendFilter struct {
	UserID *uint64 `json:"user_id"`
	State  *int    `json:"state"`
}

// RouteVehicle — проекция маршрута с данными машины для проверки назначения.
// Capacity == nil означает, что у маршрута нет машины.
type RouteVehicle struct {
	RouteID  uint64
	Capacity *int
	Brand    *string
	Code     *string
}

// DriverConflict — активный send, уже назначенный на водителя.
type DriverConflict struct {
	SendUniqueID  int64
	SendReference string
	DriverName    string
}
