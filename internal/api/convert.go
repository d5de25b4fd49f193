package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/njoerd114/frontdesk/internal/model"
)

// walkInRequest is the body of POST /api/walk-in-bookings. The hotel travels
// in the X-Hotel-ID header, not in the body.
type walkInRequest struct {
	GuestName       string              `json:"guestName"`
	GuestEmail      string              `json:"guestEmail"`
	GuestPhone      string              `json:"guestPhone"`
	RoomType        string              `json:"roomType"`
	RoomID          int64               `json:"roomId,omitempty"`
	CheckInDate     model.Date          `json:"checkInDate"`
	CheckOutDate    model.Date          `json:"checkOutDate"`
	NumberOfGuests  int                 `json:"numberOfGuests"`
	TotalAmount     float64             `json:"totalAmount"`
	PricePerNight   float64             `json:"pricePerNight"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
	SpecialRequests string              `json:"specialRequests,omitempty"`
}

func newWalkInRequest(b *model.PendingBooking) walkInRequest {
	return walkInRequest{
		GuestName:       b.GuestName,
		GuestEmail:      b.GuestEmail,
		GuestPhone:      b.GuestPhone,
		RoomType:        b.RoomType,
		RoomID:          b.RoomID,
		CheckInDate:     b.CheckInDate,
		CheckOutDate:    b.CheckOutDate,
		NumberOfGuests:  b.NumberOfGuests,
		TotalAmount:     b.TotalAmount,
		PricePerNight:   b.PricePerNight,
		PaymentMethod:   b.PaymentMethod,
		SpecialRequests: b.SpecialRequests,
	}
}

// flexID accepts ids sent as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id %s: %w", b, err)
	}
	*f = flexID(n.String())
	return nil
}

// createdBooking is the part of the create-walk-in response we keep.
type createdBooking struct {
	ID              flexID `json:"id"`
	ReservationID   flexID `json:"reservationId"`
	BookingID       flexID `json:"bookingId"`
	ConfirmationNum string `json:"confirmationNumber"`
}

func (c createdBooking) id() string {
	for _, id := range []flexID{c.ReservationID, c.ID, c.BookingID} {
		if id != "" {
			return string(id)
		}
	}
	return c.ConfirmationNum
}

// roomDTO is a room as the listing endpoints return it.
type roomDTO struct {
	ID            int64   `json:"id"`
	RoomNumber    string  `json:"roomNumber"`
	RoomType      string  `json:"roomType"`
	PricePerNight float64 `json:"pricePerNight"`
	Capacity      int     `json:"capacity"`
	Description   string  `json:"description"`
	HotelID       int64   `json:"hotelId"`
	IsAvailable   *bool   `json:"isAvailable"`
}

func (r roomDTO) toModel(hotelID int64) model.CachedRoom {
	room := model.CachedRoom{
		ID:            r.ID,
		RoomNumber:    r.RoomNumber,
		RoomType:      r.RoomType,
		PricePerNight: r.PricePerNight,
		Capacity:      r.Capacity,
		Description:   r.Description,
		HotelID:       r.HotelID,
		IsAvailable:   r.IsAvailable == nil || *r.IsAvailable,
	}
	if room.HotelID == 0 {
		room.HotelID = hotelID
	}
	return room
}

// bookingDTO is a confirmed booking as the booking listings return it.
type bookingDTO struct {
	ID              flexID  `json:"id"`
	ReservationID   flexID  `json:"reservationId"`
	HotelID         int64   `json:"hotelId"`
	GuestName       string  `json:"guestName"`
	GuestEmail      string  `json:"guestEmail"`
	GuestPhone      string  `json:"guestPhone"`
	RoomID          int64   `json:"roomId"`
	RoomNumber      string  `json:"roomNumber"`
	RoomType        string  `json:"roomType"`
	CheckInDate     string  `json:"checkInDate"`
	CheckOutDate    string  `json:"checkOutDate"`
	NumberOfGuests  int     `json:"numberOfGuests"`
	TotalAmount     float64 `json:"totalAmount"`
	PricePerNight   float64 `json:"pricePerNight"`
	PaymentMethod   string  `json:"paymentMethod"`
	SpecialRequests string  `json:"specialRequests"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"createdAt"`
}

func (b bookingDTO) toModel(hotelID int64) (model.ConfirmedBooking, error) {
	id := string(b.ReservationID)
	if id == "" {
		id = string(b.ID)
	}
	if id == "" {
		return model.ConfirmedBooking{}, fmt.Errorf("booking without id for guest %q", b.GuestEmail)
	}
	in, err := model.ParseDate(b.CheckInDate)
	if err != nil {
		return model.ConfirmedBooking{}, fmt.Errorf("booking %s: %w", id, err)
	}
	out, err := model.ParseDate(b.CheckOutDate)
	if err != nil {
		return model.ConfirmedBooking{}, fmt.Errorf("booking %s: %w", id, err)
	}

	cb := model.ConfirmedBooking{
		ID:              id,
		HotelID:         b.HotelID,
		GuestName:       b.GuestName,
		GuestEmail:      b.GuestEmail,
		GuestPhone:      b.GuestPhone,
		RoomID:          b.RoomID,
		RoomNumber:      b.RoomNumber,
		RoomType:        b.RoomType,
		CheckInDate:     in,
		CheckOutDate:    out,
		NumberOfGuests:  b.NumberOfGuests,
		TotalAmount:     b.TotalAmount,
		PricePerNight:   b.PricePerNight,
		PaymentMethod:   model.PaymentMethod(strings.ToUpper(b.PaymentMethod)),
		SpecialRequests: b.SpecialRequests,
		Status:          model.BookingStatus(strings.ToUpper(b.Status)),
		Source:          model.SourceOnline,
		SyncStatus:      model.StatusSynced,
	}
	if cb.HotelID == 0 {
		cb.HotelID = hotelID
	}
	if cb.Status == "" {
		cb.Status = model.BookingConfirmed
	}
	if t, err := time.Parse(time.RFC3339Nano, b.CreatedAt); err == nil {
		cb.CreatedAt = t.UTC()
	}
	return cb, nil
}

// LoginResult is the backend's answer to a successful sign-in.
type LoginResult struct {
	ID           int64    `json:"id"`
	Email        string   `json:"email"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Roles        []string `json:"roles"`
	HotelID      flexID   `json:"hotelId"`
	HotelName    string   `json:"hotelName"`
	TenantID     string   `json:"tenantId"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
}

// Hotel returns the numeric hotel id, or zero when the user has none.
func (r *LoginResult) Hotel() int64 {
	id, _ := strconv.ParseInt(string(r.HotelID), 10, 64)
	return id
}

// decodeList accepts either a bare JSON array or a paginated
// {"content": [...]} envelope.
func decodeList[T any](raw []byte) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decoding list: %w", err)
		}
		return out, nil
	}
	var page struct {
		Content []T `json:"content"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}
	return page.Content, nil
}
