package state

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/njoerd114/frontdesk/internal/model"
)

var cachedRooms = &collection[model.CachedRoom]{
	name: "cached_rooms",
	key:  func(r *model.CachedRoom) string { return strconv.FormatInt(r.ID, 10) },
	indexes: []string{
		"hotel_id", "room_type", "last_updated", "room_number",
		"is_available", "offline_status", "occupied_by",
	},
	values: func(r *model.CachedRoom) []any {
		return []any{
			r.HotelID, r.RoomType, formatTime(r.LastUpdated), r.RoomNumber,
			boolIndex(r.IsAvailable), string(r.OfflineStatus), r.OccupiedBy,
		}
	},
}

// SaveRooms replaces the cached snapshot for hotelID with rooms in one
// transaction; other hotels are untouched. Rooms without a hotel id adopt
// hotelID. An offline occupation already recorded on a room survives the
// refresh, since the server does not know about it yet.
func (s *Store) SaveRooms(ctx context.Context, hotelID int64, rooms []model.CachedRoom) error {
	now := s.now().UTC()
	return s.update(ctx, "save rooms", func(tx *sql.Tx) error {
		prev, err := cachedRooms.where(ctx, tx, "hotel_id", hotelID)
		if err != nil {
			return err
		}
		overlays := make(map[int64]*model.CachedRoom, len(prev))
		for _, r := range prev {
			if r.OfflineStatus == model.RoomOccupied {
				overlays[r.ID] = r
			}
		}

		if _, err := cachedRooms.clear(ctx, tx, "hotel_id", hotelID); err != nil {
			return err
		}
		for i := range rooms {
			r := rooms[i]
			if r.HotelID == 0 {
				r.HotelID = hotelID
			}
			r.LastUpdated = now
			if o, ok := overlays[r.ID]; ok {
				r.OfflineStatus = o.OfflineStatus
				r.OccupiedBy = o.OccupiedBy
				r.OccupiedFrom = o.OccupiedFrom
				r.OccupiedTo = o.OccupiedTo
			}
			if err := cachedRooms.put(ctx, tx, &r); err != nil {
				return fmt.Errorf("caching room %d: %w", r.ID, err)
			}
		}
		return nil
	})
}

// CachedRooms returns the snapshot for hotelID, or every cached room when
// hotelID is zero.
func (s *Store) CachedRooms(ctx context.Context, hotelID int64) ([]*model.CachedRoom, error) {
	var out []*model.CachedRoom
	err := s.update(ctx, "list cached rooms", func(tx *sql.Tx) error {
		var err error
		if hotelID == 0 {
			out, err = cachedRooms.all(ctx, tx)
		} else {
			out, err = cachedRooms.where(ctx, tx, "hotel_id", hotelID)
		}
		return err
	})
	return out, err
}

// RoomsCacheAge returns how long ago the oldest room of hotelID was cached.
// ok is false when nothing is cached for the hotel.
func (s *Store) RoomsCacheAge(ctx context.Context, hotelID int64) (age time.Duration, ok bool, err error) {
	rooms, err := s.CachedRooms(ctx, hotelID)
	if err != nil || len(rooms) == 0 {
		return 0, false, err
	}
	oldest := rooms[0].LastUpdated
	for _, r := range rooms[1:] {
		if r.LastUpdated.Before(oldest) {
			oldest = r.LastUpdated
		}
	}
	return s.now().Sub(oldest), true, nil
}

// ClearCachedRooms drops the snapshot for hotelID, or every snapshot when
// hotelID is zero.
func (s *Store) ClearCachedRooms(ctx context.Context, hotelID int64) error {
	return s.update(ctx, "clear cached rooms", func(tx *sql.Tx) error {
		var err error
		if hotelID == 0 {
			_, err = cachedRooms.clear(ctx, tx, "", nil)
		} else {
			_, err = cachedRooms.clear(ctx, tx, "hotel_id", hotelID)
		}
		return err
	})
}

// MarkRoomOccupied records that bookingID holds roomID for stay.
func (s *Store) MarkRoomOccupied(ctx context.Context, roomID int64, bookingID string, stay model.Stay) error {
	return s.updateRoom(ctx, "mark room occupied", roomID, func(r *model.CachedRoom) {
		r.Occupy(bookingID, stay, s.now())
	})
}

// MarkRoomAvailable clears the offline occupation of roomID.
func (s *Store) MarkRoomAvailable(ctx context.Context, roomID int64) error {
	return s.updateRoom(ctx, "mark room available", roomID, func(r *model.CachedRoom) {
		r.Release(s.now())
	})
}

func (s *Store) updateRoom(ctx context.Context, op string, roomID int64, fn func(*model.CachedRoom)) error {
	return s.update(ctx, op, func(tx *sql.Tx) error {
		r, err := cachedRooms.get(ctx, tx, strconv.FormatInt(roomID, 10))
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("room %d: %w", roomID, ErrNotFound)
		}
		fn(r)
		return cachedRooms.put(ctx, tx, r)
	})
}
