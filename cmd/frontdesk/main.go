// Frontdesk is the offline-first terminal agent for a hotel front desk. It
// keeps walk-in bookings in a local SQLite store while the booking backend
// is unreachable and replays them once it comes back.
//
// Usage:
//
//	frontdesk daemon [--config <path>]         # periodic room refresh + sync engine
//	frontdesk sync-once                        # replay pending bookings then exit
//	frontdesk retry                            # re-queue failed bookings and replay
//	frontdesk status                           # sync counters and store health
//	frontdesk export [--out file]              # JSON backup of bookings and guests
//	frontdesk purge [--days N]                 # delete old synced bookings
//	frontdesk login --email <e> [--password p] # sign in (online or cached)
//	frontdesk logout
//	frontdesk rooms [--refresh] [--type T]     # list cached rooms
//	frontdesk available --in D --out D --guests N
//	frontdesk book --name ... --email ... --in D --out D [--room 101]
//	frontdesk version
//
// Every subcommand accepts --config and --verbose. FRONTDESK_* environment
// variables (optionally from a .env file) override config keys.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/njoerd114/frontdesk/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// command is one subcommand; args excludes the subcommand name.
type command func(args []string) error

var commands = map[string]command{
	"daemon":    runDaemon,
	"sync-once": runSyncOnce,
	"retry":     runRetry,
	"status":    runStatus,
	"export":    runExport,
	"purge":     runPurge,
	"login":     runLogin,
	"logout":    runLogout,
	"rooms":     runRooms,
	"available": runAvailable,
	"book":      runBook,
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	// A missing .env is normal; real environment variables win over it.
	_ = godotenv.Load()

	name := os.Args[1]
	if name == "version" {
		fmt.Println("frontdesk", version)
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, run 'frontdesk' for usage", name)
	}
	return cmd(os.Args[2:])
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "frontdesk: offline walk-in bookings with deferred sync")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  frontdesk daemon                      Refresh rooms and sync continuously")
	fmt.Fprintln(os.Stderr, "  frontdesk sync-once                   Replay pending bookings then exit")
	fmt.Fprintln(os.Stderr, "  frontdesk retry                       Re-queue failed bookings and replay")
	fmt.Fprintln(os.Stderr, "  frontdesk status                      Show sync state and store health")
	fmt.Fprintln(os.Stderr, "  frontdesk export [--out file]         Export bookings and guests as JSON")
	fmt.Fprintln(os.Stderr, "  frontdesk purge [--days N]            Delete synced bookings older than N days")
	fmt.Fprintln(os.Stderr, "  frontdesk login --email E             Sign in")
	fmt.Fprintln(os.Stderr, "  frontdesk logout                      Sign out")
	fmt.Fprintln(os.Stderr, "  frontdesk rooms [--refresh]           List cached rooms")
	fmt.Fprintln(os.Stderr, "  frontdesk available --in --out        Free rooms for a stay")
	fmt.Fprintln(os.Stderr, "  frontdesk book ...                    Record a walk-in booking")
	fmt.Fprintln(os.Stderr, "  frontdesk version                     Print version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Common flags: --config <path>, --verbose")
}

// globalFlags are accepted by every subcommand.
type globalFlags struct {
	config  *string
	verbose *bool
}

func newFlagSet(name string) (*flag.FlagSet, globalFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	return fs, globalFlags{
		config:  fs.String("config", defaultCfg, "path to config.yaml"),
		verbose: fs.Bool("verbose", false, "enable debug logging"),
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
