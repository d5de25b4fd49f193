package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/availability"
	"github.com/njoerd114/frontdesk/internal/model"
	syncp "github.com/njoerd114/frontdesk/internal/sync"
	"github.com/njoerd114/frontdesk/internal/telemetry"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// --- sync --------------------------------------------------------------------

func runDaemon(args []string) error {
	fs, g := newFlagSet("daemon")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	if telCfg, ok := telemetry.FromConfig(a.cfg.Telemetry, version); ok {
		shutdownTel, err := telemetry.Setup(ctx, telCfg)
		if err != nil {
			a.log.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			a.log.Info("telemetry enabled", "endpoint", telCfg.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					a.log.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	if hotelID, err := a.hotelID(ctx); err != nil {
		a.log.Warn("room refresh disabled until a hotel is known", "error", err)
	} else {
		a.rooms.StartPeriodicRefresh(ctx, hotelID)
		defer a.rooms.StopPeriodicRefresh()
	}

	a.log.Info("daemon starting", "api_url", a.cfg.APIURL, "sync_interval", a.cfg.Sync.Interval)
	if err := a.engine().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	a.log.Info("shutdown complete")
	return nil
}

func runSyncOnce(args []string) error {
	fs, g := newFlagSet("sync-once")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.engine().RunOnce(ctx)
	a.log.Info("sync complete",
		"online", stats.Online,
		"synced", stats.Synced,
		"failed", stats.Failed,
		"purged_bookings", stats.PurgedBookings,
		"preloaded", stats.Preloaded,
	)
	return err
}

func runRetry(args []string) error {
	fs, g := newFlagSet("retry")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	if !a.online.Online(ctx) {
		return errors.New("backend unreachable, failed bookings left as they are")
	}
	return printResult(a.sync.RetryFailedBookings(ctx, api.CredentialsFor(sess)))
}

func printResult(res syncp.Result) error {
	fmt.Printf("synced: %d  failed: %d\n", res.SyncedCount, res.FailedCount)
	for _, e := range res.Errors {
		fmt.Printf("  %s: %s\n", e.BookingID, e.Error)
	}
	if !res.Success {
		return errors.New("sync pass did not run")
	}
	return nil
}

func runStatus(args []string) error {
	fs, g := newFlagSet("status")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.sync.GetSyncStatus(ctx)
	if err != nil {
		return err
	}
	health, err := a.store.Health(ctx)
	if err != nil {
		return fmt.Errorf("checking offline DB: %w", err)
	}
	counts, err := a.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("counting records: %w", err)
	}

	fmt.Println("frontdesk", version)
	fmt.Println("")
	fmt.Printf("  Backend:   %s (online: %t)\n", a.cfg.APIURL, a.online.Online(ctx))
	if sess, _ := a.auth.Current(ctx); sess != nil {
		fmt.Printf("  Signed in: %s (%s, hotel %d)\n", sess.Email, sess.Role, sess.HotelID)
	} else {
		fmt.Println("  Signed in: nobody")
	}
	fmt.Printf("  Store:     %s (schema v%d, healthy: %t)\n", a.store.Path(), health.Version, health.Healthy)
	fmt.Println("")
	fmt.Printf("  Bookings:  %d total, %d pending, %d failed, %d synced\n",
		st.TotalCount, st.PendingCount, st.FailedCount, st.SyncedCount)
	fmt.Printf("  Cached:    %d rooms, %d confirmed bookings, %d guests\n",
		counts.CachedRooms, counts.ConfirmedBookings, counts.Guests)
	if st.LastSyncAttempt != nil {
		fmt.Printf("  Last try:  %s\n", st.LastSyncAttempt.Local().Format(time.DateTime))
	}
	if st.LastSyncSuccess != nil {
		fmt.Printf("  Last sync: %s\n", st.LastSyncSuccess.Local().Format(time.DateTime))
	}
	if st.LastSyncError != "" {
		fmt.Printf("  Last err:  %s\n", st.LastSyncError)
	}
	if st.LastRun != nil {
		fmt.Printf("  Last run:  %s %s (%d synced, %d failed)\n",
			st.LastRun.Kind, st.LastRun.At.Local().Format(time.DateTime),
			st.LastRun.SyncedCount, st.LastRun.FailedCount)
	}
	return nil
}

func runExport(args []string) error {
	fs, g := newFlagSet("export")
	out := fs.String("out", "", "write to this file instead of stdout")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := a.sync.ExportOfflineBookings(ctx)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	a.log.Info("export written", "path", *out, "bytes", len(data))
	return nil
}

func runPurge(args []string) error {
	fs, g := newFlagSet("purge")
	days := fs.Int("days", 30, "delete synced bookings created more than this many days ago")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.sync.ClearOldSyncedBookings(ctx, *days)
	if err != nil {
		return err
	}
	guests, err := a.sync.CleanupOrphanedGuests(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d synced bookings and %d orphaned guests\n", n, guests)
	return nil
}

// --- staff -------------------------------------------------------------------

func runLogin(args []string) error {
	fs, g := newFlagSet("login")
	email := fs.String("email", "", "staff email")
	password := fs.String("password", "", "password (prompted when omitted)")
	_ = fs.Parse(args)
	if *email == "" {
		return errors.New("--email is required")
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	pw := *password
	if pw == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	sess, err := a.auth.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s) until %s\n", sess.Email, sess.Role, sess.ExpiresAt.Local().Format(time.DateTime))
	return nil
}

func runLogout(args []string) error {
	fs, g := newFlagSet("logout")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

// --- rooms & bookings ----------------------------------------------------------

func runRooms(args []string) error {
	fs, g := newFlagSet("rooms")
	refresh := fs.Bool("refresh", false, "download the room list even if the cache is fresh")
	roomType := fs.String("type", "", "only rooms of this type")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	hotelID, err := a.hotelID(ctx)
	if err != nil {
		return err
	}
	rooms, err := a.rooms.GetRooms(ctx, hotelID, *refresh)
	if err != nil {
		return err
	}
	if *roomType != "" {
		if rooms, err = a.rooms.RoomsByType(ctx, hotelID, *roomType); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tTYPE\tCAPACITY\tPRICE\tSTATUS")
	for _, r := range rooms {
		status := "available"
		switch {
		case r.OfflineStatus == model.RoomOccupied:
			status = fmt.Sprintf("held by %s (%s to %s)", r.OccupiedBy, r.OccupiedFrom, r.OccupiedTo)
		case !r.IsAvailable:
			status = "unavailable"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\n", r.RoomNumber, r.RoomType, r.Capacity, r.PricePerNight, status)
	}
	return tw.Flush()
}

// stayFlags registers --in and --out on fs.
func stayFlags(fs *flag.FlagSet) func() (model.Stay, error) {
	in := fs.String("in", "", "check-in date (YYYY-MM-DD)")
	out := fs.String("out", "", "check-out date (YYYY-MM-DD)")
	return func() (model.Stay, error) {
		checkIn, err := model.ParseDate(*in)
		if err != nil {
			return model.Stay{}, fmt.Errorf("--in: %w", err)
		}
		checkOut, err := model.ParseDate(*out)
		if err != nil {
			return model.Stay{}, fmt.Errorf("--out: %w", err)
		}
		return model.NewStay(checkIn, checkOut)
	}
}

func runAvailable(args []string) error {
	fs, g := newFlagSet("available")
	stay := stayFlags(fs)
	guests := fs.Int("guests", 1, "party size")
	_ = fs.Parse(args)

	s, err := stay()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	hotelID, err := a.hotelID(ctx)
	if err != nil {
		return err
	}
	free, err := a.avail.Resolve(ctx, availability.Query{HotelID: hotelID, Stay: s, Guests: *guests})
	if err != nil {
		return err
	}

	fmt.Printf("%d rooms free for %s (%d nights, %d guests)\n", len(free), s, s.Nights(), *guests)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range free {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%.2f\n", r.RoomNumber, r.RoomType, r.Capacity, r.PricePerNight)
	}
	return tw.Flush()
}

func runBook(args []string) error {
	fs, g := newFlagSet("book")
	stay := stayFlags(fs)
	var w model.WalkIn
	fs.StringVar(&w.GuestName, "name", "", "guest name")
	fs.StringVar(&w.GuestEmail, "email", "", "guest email")
	fs.StringVar(&w.GuestPhone, "phone", "", "guest phone")
	fs.StringVar(&w.RoomType, "type", "", "room type (taken from --room when omitted)")
	roomNumber := fs.String("room", "", "room number to assign")
	fs.IntVar(&w.NumberOfGuests, "guests", 1, "party size")
	fs.Float64Var(&w.PricePerNight, "price", 0, "price per night (taken from --room when omitted)")
	fs.Float64Var(&w.TotalAmount, "total", 0, "total amount (price x nights when omitted)")
	payment := fs.String("payment", string(model.PaymentCash), "CASH, CARD or PENDING")
	fs.StringVar(&w.SpecialRequests, "requests", "", "special requests")
	_ = fs.Parse(args)

	s, err := stay()
	if err != nil {
		return err
	}
	w.CheckInDate, w.CheckOutDate = s.CheckIn, s.CheckOut
	w.PaymentMethod = model.PaymentMethod(strings.ToUpper(*payment))

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	if w.HotelID, err = a.hotelID(ctx); err != nil {
		return err
	}

	if *roomNumber != "" {
		room, err := a.assignRoom(ctx, &w, *roomNumber)
		if err != nil {
			return err
		}
		free, err := a.avail.IsRoomAvailable(ctx,
			availability.Query{HotelID: w.HotelID, Stay: s, Guests: w.NumberOfGuests}, room.ID)
		if err != nil {
			return err
		}
		if !free {
			return fmt.Errorf("room %s is not available for %s", room.RoomNumber, s)
		}
	}
	if w.TotalAmount == 0 {
		w.TotalAmount = w.PricePerNight * float64(s.Nights())
	}

	b, err := model.NewPendingBooking(w, sess.UserID, time.Now())
	if err != nil {
		return err
	}
	if err := a.store.SaveOfflineBooking(ctx, b); err != nil {
		return fmt.Errorf("saving booking: %w", err)
	}
	if b.RoomID != 0 {
		if err := a.store.MarkRoomOccupied(ctx, b.RoomID, b.ID, s); err != nil {
			a.log.Warn("marking room occupied", "room_id", b.RoomID, "error", err)
		}
	}
	fmt.Printf("booking %s saved, waiting for sync\n", b.ID)
	return nil
}

// assignRoom copies the cached room's id, type and price into w.
func (a *app) assignRoom(ctx context.Context, w *model.WalkIn, number string) (*model.CachedRoom, error) {
	rooms, err := a.rooms.GetRooms(ctx, w.HotelID, false)
	if err != nil {
		return nil, err
	}
	for _, r := range rooms {
		if r.RoomNumber != number {
			continue
		}
		w.RoomID, w.RoomNumber = r.ID, r.RoomNumber
		if w.RoomType == "" {
			w.RoomType = r.RoomType
		}
		if w.PricePerNight == 0 {
			w.PricePerNight = r.PricePerNight
		}
		return r, nil
	}
	return nil, fmt.Errorf("room %s is not in the cached room list", number)
}
