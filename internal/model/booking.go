package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is how a walk-in guest settles the stay.
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "CASH"
	PaymentCard    PaymentMethod = "CARD"
	PaymentPending PaymentMethod = "PENDING"
)

// SyncStatus tracks a locally created booking through replay to the server.
type SyncStatus string

const (
	StatusPendingSync SyncStatus = "PENDING_SYNC"
	StatusSyncFailed  SyncStatus = "SYNC_FAILED"
	StatusSynced      SyncStatus = "SYNCED"
)

// BookingStatus is the server-side lifecycle state of a confirmed booking.
type BookingStatus string

const (
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingCheckedIn  BookingStatus = "CHECKED_IN"
	BookingCheckedOut BookingStatus = "CHECKED_OUT"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// BookingSource records where a confirmed booking originated.
type BookingSource string

const (
	SourceOnline  BookingSource = "ONLINE"
	SourceOffline BookingSource = "OFFLINE"
)

// offlineIDPrefix marks ids generated on the terminal rather than the server.
const offlineIDPrefix = "offline_"

// ErrInvalidTransition is returned when a sync status change is not allowed
// from the booking's current status.
var ErrInvalidTransition = errors.New("invalid sync status transition")

// WalkIn is the caller-supplied part of a walk-in booking.
type WalkIn struct {
	HotelID         int64         `json:"hotelId" validate:"gt=0"`
	GuestName       string        `json:"guestName" validate:"required"`
	GuestEmail      string        `json:"guestEmail" validate:"required,email"`
	GuestPhone      string        `json:"guestPhone"`
	RoomType        string        `json:"roomType" validate:"required"`
	RoomID          int64         `json:"roomId,omitempty" validate:"gte=0"`
	RoomNumber      string        `json:"roomNumber,omitempty"`
	CheckInDate     Date          `json:"checkInDate"`
	CheckOutDate    Date          `json:"checkOutDate"`
	NumberOfGuests  int           `json:"numberOfGuests" validate:"gte=1"`
	TotalAmount     float64       `json:"totalAmount" validate:"gte=0"`
	PricePerNight   float64       `json:"pricePerNight" validate:"gte=0"`
	PaymentMethod   PaymentMethod `json:"paymentMethod" validate:"oneof=CASH CARD PENDING"`
	SpecialRequests string        `json:"specialRequests,omitempty"`
}

// Stay returns the booked date range.
func (w *WalkIn) Stay() Stay {
	return Stay{CheckIn: w.CheckInDate, CheckOut: w.CheckOutDate}
}

// Validate checks the struct rules and the date range.
func (w *WalkIn) Validate() error {
	if err := Validate(w); err != nil {
		return err
	}
	return w.Stay().Validate()
}

// PendingBooking is a walk-in booking created on the terminal that the
// server has not confirmed yet.
type PendingBooking struct {
	ID string `json:"id"`
	WalkIn
	Status            SyncStatus `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	CreatedBy         int64      `json:"createdBy"`
	SyncAttempts      int        `json:"syncAttempts"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
	LastSyncAttemptAt time.Time  `json:"lastSyncAttemptAt,omitzero"`
}

// NewPendingBooking validates w and returns a booking in PENDING_SYNC with a
// fresh offline id.
func NewPendingBooking(w WalkIn, createdBy int64, now time.Time) (*PendingBooking, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &PendingBooking{
		ID:        offlineIDPrefix + uuid.NewString(),
		WalkIn:    w,
		Status:    StatusPendingSync,
		CreatedAt: now.UTC(),
		CreatedBy: createdBy,
	}, nil
}

// MarkSynced records a successful replay.
func (b *PendingBooking) MarkSynced(at time.Time) error {
	if b.Status != StatusPendingSync {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, StatusSynced)
	}
	b.Status = StatusSynced
	b.ErrorMessage = ""
	b.LastSyncAttemptAt = at.UTC()
	return nil
}

// MarkFailed records a failed replay, bumping the attempt counter.
func (b *PendingBooking) MarkFailed(msg string, at time.Time) error {
	if b.Status != StatusPendingSync {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, StatusSyncFailed)
	}
	b.Status = StatusSyncFailed
	b.SyncAttempts++
	b.ErrorMessage = msg
	b.LastSyncAttemptAt = at.UTC()
	return nil
}

// ResetForRetry moves a failed booking back to PENDING_SYNC with a clean
// attempt history.
func (b *PendingBooking) ResetForRetry() error {
	if b.Status != StatusSyncFailed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, StatusPendingSync)
	}
	b.Status = StatusPendingSync
	b.SyncAttempts = 0
	b.ErrorMessage = ""
	return nil
}

// GuestEntry derives the guest-directory record for this booking.
func (b *PendingBooking) GuestEntry() GuestDirectoryEntry {
	return GuestDirectoryEntry{
		Email:    b.GuestEmail,
		Name:     b.GuestName,
		Phone:    b.GuestPhone,
		LastStay: b.CheckInDate,
	}
}

// ConfirmedBooking is a server-confirmed booking cached so availability can
// be answered offline.
type ConfirmedBooking struct {
	ID              string        `json:"id"`
	HotelID         int64         `json:"hotelId"`
	GuestName       string        `json:"guestName"`
	GuestEmail      string        `json:"guestEmail"`
	GuestPhone      string        `json:"guestPhone"`
	RoomID          int64         `json:"roomId"`
	RoomNumber      string        `json:"roomNumber"`
	RoomType        string        `json:"roomType"`
	CheckInDate     Date          `json:"checkInDate"`
	CheckOutDate    Date          `json:"checkOutDate"`
	NumberOfGuests  int           `json:"numberOfGuests"`
	TotalAmount     float64       `json:"totalAmount"`
	PricePerNight   float64       `json:"pricePerNight"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	SpecialRequests string        `json:"specialRequests,omitempty"`
	Status          BookingStatus `json:"status"`
	Source          BookingSource `json:"source"`
	SyncStatus      SyncStatus    `json:"syncStatus,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	CreatedBy       int64         `json:"createdBy"`
}

// Stay returns the booked date range.
func (b *ConfirmedBooking) Stay() Stay {
	return Stay{CheckIn: b.CheckInDate, CheckOut: b.CheckOutDate}
}

// GuestDirectoryEntry is a guest the front desk has served, keyed by email.
type GuestDirectoryEntry struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	LastStay    Date   `json:"lastStay,omitzero"`
	Preferences string `json:"preferences,omitempty"`
}
