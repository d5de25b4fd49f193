package model

import (
	"slices"
	"time"
)

// Staff roles understood by the terminal. Hotel admins and front-desk staff
// use different listing endpoints on the backend.
const (
	RoleHotelAdmin = "HOTEL_ADMIN"
	RoleFrontDesk  = "FRONTDESK"
)

// StaffSession is a cached authentication result that lets staff sign in
// while the backend is unreachable.
type StaffSession struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"userId" validate:"gt=0"`
	Username     string    `json:"username"`
	Email        string    `json:"email" validate:"required,email"`
	Role         string    `json:"role"`
	Roles        []string  `json:"roles"`
	HotelID      int64     `json:"hotelId,omitempty"`
	HotelName    string    `json:"hotelName,omitempty"`
	TenantID     string    `json:"tenantId,omitempty"`
	Token        string    `json:"token" validate:"required"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsActive     bool      `json:"isActive"`
	PasswordHash string    `json:"passwordHash,omitempty"`
}

// Expired reports whether the session's expiry is at or before now.
func (s *StaffSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// HasRole reports whether role is the primary role or one of Roles.
func (s *StaffSession) HasRole(role string) bool {
	return s.Role == role || slices.Contains(s.Roles, role)
}
