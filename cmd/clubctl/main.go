// Command clubctl runs maintenance tasks against the Beach Club database.
//
//	clubctl migrate [--down] [--steps N] [--auto]
//	clubctl leaderboard [--limit N]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/trentd187/beach-club/internal/bags"
	"github.com/trentd187/beach-club/internal/config"
	"github.com/trentd187/beach-club/internal/database"
	"github.com/trentd187/beach-club/internal/logging"
)

// app carries what every subcommand needs. It is filled in before flags.Parser runs the
// selected command.
type app struct {
	cfg *config.Config // environment config, same as the server's
	log *zap.Logger    // logs database connection attempts
	out io.Writer      // stdout, or a buffer in tests
}

// migrateCmd applies the SQL migrations, rolls them back, or syncs the schema from the models.
type migrateCmd struct {
	app   *app
	Down  bool `long:"down" description:"roll back instead of applying"` // go-flags reads these struct tags
	Steps int  `long:"steps" default:"1" description:"migrations to roll back with --down"`
	Auto  bool `long:"auto" description:"create tables from the gorm models instead of the SQL files (development only)"`
}

// Execute is called by go-flags once the migrate flags are parsed.
func (m *migrateCmd) Execute([]string) error {
	cfg := m.app.cfg
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	// Exactly one of three modes runs. --auto and --down contradict each other.
	switch {
	case m.Auto && m.Down:
		return errors.New("--auto cannot be combined with --down")
	// AutoMigrate only adds tables and columns; it never drops anything, so it is only
	// fit for a scratch database.
	case m.Auto:
		db, err := database.Connect(cfg.DatabaseURL, m.app.log)
		if err != nil {
			return err
		}
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		fmt.Fprintln(m.app.out, "schema synced from models")
		return nil
	case m.Down:
		// A zero or negative step count would roll nothing back, or roll forward.
		if m.Steps < 1 {
			return errors.New("--steps must be at least 1")
		}
		v, err := database.RollbackMigrations(cfg.MigrationsPath, cfg.DatabaseURL, m.Steps)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.app.out, "rolled back %d step(s), schema version %d\n", m.Steps, v)
		return nil
	// The default is "up": apply everything pending.
	default:
		v, err := database.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.app.out, "schema version %d\n", v)
		return nil
	}
}

// leaderboardCmd prints the bags leaderboard as a table.
type leaderboardCmd struct {
	app   *app
	Limit int `short:"n" long:"limit" default:"10" description:"rows to print"`
}

func (l *leaderboardCmd) Execute([]string) error {
	cfg := l.app.cfg
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := database.Connect(cfg.DatabaseURL, l.app.log)
	if err != nil {
		return err
	}
	// A nil feed is fine here: the command only reads.
	board, err := bags.NewTracker(db, nil, l.app.log).Leaderboard(context.Background(), l.Limit)
	if err != nil {
		return err
	}
	return printLeaderboard(l.app.out, board)
}

// printLeaderboard writes board as aligned columns.
func printLeaderboard(w io.Writer, board []bags.PlayerSummary) error {
	// tabwriter pads each tab-separated cell to the widest in its column.
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	// Header row, then one row per player in leaderboard order.
	fmt.Fprintln(tw, "#\tPLAYER\tW\tL\tWIN%\tTOURNEYS")
	for i, p := range board {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.1f\t%d\n", i+1, p.Name, p.Wins, p.Losses, p.WinRate, p.TournamentWins)
	}
	return tw.Flush()
}

// newParser builds the parser with every subcommand registered against a.
func newParser(a *app) *flags.Parser {
	p := flags.NewNamedParser("clubctl", flags.Default)
	// Running clubctl with no subcommand is an error that lists the choices.
	p.SubcommandsOptional = false
	// AddCommand only fails on a malformed struct tag, which the tests would catch.
	_, _ = p.AddCommand("migrate", "Apply or roll back schema migrations", "", &migrateCmd{app: a})
	_, _ = p.AddCommand("leaderboard", "Print the bags leaderboard", "", &leaderboardCmd{app: a})
	return p
}

func main() {
	// Same config and logger setup as the server, minus Validate: only the database URL matters here.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if _, err := newParser(&app{cfg: cfg, log: log, out: os.Stdout}).Parse(); err != nil {
		// go-flags has already printed err, command failures included.
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
