package models

// Роль 1 — администратор, остальные видят только свои sends.
const RoleAdmin = 1

type User struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	RolID int    `json:"rol_id"`
}

// AuthUser — identity, зашитая в токен и прикрепляемая к запросу.
type AuthUser struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	RolID int    `json:"rol_id"`
}

func (u AuthUser) IsAdmin() bool {
	return u.RolID == RoleAdmin
}

type Driver struct {
	ID     uint64 `json:"id"`
	Cifnif string `json:"cifnif"`
	Name   string `json:"name"`
}

type Vehicle struct {
	ID       uint64 `json:"id"`
	Code     string `json:"code"`
	Brand    string `json:"brand"`
	Capacity int    `json:"capacity"`
}

type Route struct {
	ID        uint64   `json:"id"`
	Code      string   `json:"code"`
	DescRoute string   `json:"desc_route"`
	VehicleID *uint64  `json:"vehicle_id"`
	Vehicle   *Vehicle `json:"vehicle"`
}
