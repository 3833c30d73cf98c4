// Command davsync is a small CLI front end for the sync engine: probe a
// server, list collections and items, inspect the offline queue and manage
// stored credentials.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
	"github.com/ShiftyMcCool/clowd-dav-sub000/davclient"
	"github.com/ShiftyMcCool/clowd-dav-sub000/internal/config"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()("✓")
	failMark = color.New(color.FgRed).SprintFunc()("✗")
	heading  = color.New(color.Bold).SprintfFunc()
	faint    = color.New(color.Faint).SprintfFunc()
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: davsync [-config file] <command> [args]

Commands:
  test                     probe the server connection
  calendars                list calendar collections
  books                    list address book collections
  events <calendar-url>    list events (optionally -from/-to)
  contacts <book-url>      list contacts
  pending                  show queued offline operations
  drain                    replay queued offline operations
  creds store|show|clear   manage the credential vault
  cache stats|clear        inspect or reset the snapshot cache
`)
	os.Exit(2)
}

func main() {
	configPath := flag.String("config", "", "path to config file (environment used when empty)")
	from := flag.String("from", "", "range start for 'events' (RFC 3339)")
	to := flag.String("to", "", "range end for 'events' (RFC 3339)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	logger := newLogger(cfg.Log.Level)

	engine, err := davclient.NewEngine(davclient.EngineOptions{
		Config: clowddav.Config{
			BaseURL:  cfg.Server.URL,
			Username: cfg.Server.Username,
			Password: cfg.Server.Password,
		},
		StateDir: cfg.Local.StateDir,
		Timeout:  cfg.Server.Timeout,
		Logger:   logger,
	})
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	engine.SetOnline(ctx, true)

	switch flag.Arg(0) {
	case "test":
		runTest(ctx, cfg, logger)
	case "calendars":
		runCalendars(ctx, engine)
	case "books":
		runBooks(ctx, engine)
	case "events":
		runEvents(ctx, engine, flag.Arg(1), *from, *to)
	case "contacts":
		runContacts(ctx, engine, flag.Arg(1))
	case "pending":
		runPending(engine)
	case "drain":
		runDrain(ctx, engine)
	case "creds":
		runCreds(cfg, engine, flag.Arg(1))
	case "cache":
		runCache(engine, flag.Arg(1))
	default:
		usage()
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", failMark, err)
	os.Exit(1)
}

func runTest(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	result := davclient.TestConnection(ctx, clowddav.Config{
		BaseURL:  cfg.Server.URL,
		Username: cfg.Server.Username,
		Password: cfg.Server.Password,
	}, logger)

	if result.ProviderName != "" {
		fmt.Printf("provider: %s\n", result.ProviderName)
	}
	if !result.OK {
		fatal(result.Err)
	}
	fmt.Printf("%s connection ok\n", okMark)
}

func runCalendars(ctx context.Context, engine *davclient.Engine) {
	calendars, err := engine.DiscoverCalendars(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Println(heading("%d calendar(s)", len(calendars)))
	for _, cal := range calendars {
		line := fmt.Sprintf("  %s  %s", cal.DisplayName, faint("%s", cal.URL))
		if cal.Color != "" {
			line += "  " + cal.Color
		}
		fmt.Println(line)
	}
}

func runBooks(ctx context.Context, engine *davclient.Engine) {
	books, err := engine.DiscoverAddressBooks(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Println(heading("%d address book(s)", len(books)))
	for _, book := range books {
		fmt.Printf("  %s  %s\n", book.DisplayName, faint("%s", book.URL))
	}
}

func runEvents(ctx context.Context, engine *davclient.Engine, calendarURL, from, to string) {
	if calendarURL == "" {
		usage()
	}
	var rng *clowddav.DateRange
	if from != "" && to != "" {
		start, err := time.Parse(time.RFC3339, from)
		if err != nil {
			fatal(fmt.Errorf("invalid -from: %w", err))
		}
		end, err := time.Parse(time.RFC3339, to)
		if err != nil {
			fatal(fmt.Errorf("invalid -to: %w", err))
		}
		rng = &clowddav.DateRange{Start: start, End: end}
	}

	events, err := engine.ListEvents(ctx, clowddav.Calendar{URL: calendarURL}, rng)
	if err != nil {
		fatal(err)
	}
	fmt.Println(heading("%d event(s)", len(events)))
	for _, ev := range events {
		fmt.Printf("  %s  %s — %s  %s\n",
			ev.Summary,
			ev.Start.Local().Format("2006-01-02 15:04"),
			ev.End.Local().Format("15:04"),
			faint("%s", ev.UID))
	}
}

func runContacts(ctx context.Context, engine *davclient.Engine, bookURL string) {
	if bookURL == "" {
		usage()
	}
	contacts, err := engine.ListContacts(ctx, clowddav.AddressBook{URL: bookURL})
	if err != nil {
		fatal(err)
	}
	fmt.Println(heading("%d contact(s)", len(contacts)))
	for _, c := range contacts {
		line := "  " + c.FormattedName
		if len(c.Emails) > 0 {
			line += "  " + faint("%s", strings.Join(c.Emails, ", "))
		}
		fmt.Println(line)
	}
}

func runPending(engine *davclient.Engine) {
	count := engine.PendingCount()
	if count == 0 {
		fmt.Printf("%s queue empty\n", okMark)
		return
	}
	fmt.Println(heading("%d pending operation(s)", count))
}

func runDrain(ctx context.Context, engine *davclient.Engine) {
	before := engine.PendingCount()
	err := engine.DrainPending(ctx)
	after := engine.PendingCount()
	fmt.Printf("replayed %d operation(s), %d remaining\n", before-after, after)
	if err != nil {
		fatal(err)
	}
}

func runCreds(cfg *config.Config, engine *davclient.Engine, sub string) {
	switch sub {
	case "store":
		secret, err := promptSecret("master secret: ")
		if err != nil {
			fatal(err)
		}
		err = engine.StoreCredentials(clowddav.Config{
			BaseURL:  cfg.Server.URL,
			Username: cfg.Server.Username,
			Password: cfg.Server.Password,
		}, secret)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%s credentials stored\n", okMark)
	case "show":
		secret, err := promptSecret("master secret: ")
		if err != nil {
			fatal(err)
		}
		stored, err := engine.RetrieveCredentials(secret)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("server:   %s\nusername: %s\n", stored.BaseURL, stored.Username)
	case "clear":
		if err := engine.ClearCredentials(); err != nil {
			fatal(err)
		}
		fmt.Printf("%s credentials cleared\n", okMark)
	default:
		usage()
	}
}

func runCache(engine *davclient.Engine, sub string) {
	switch sub {
	case "stats":
		stats := engine.CacheStats()
		fmt.Printf("collections: %d\nitems:       %d\nsize:        ~%d bytes\n",
			stats.Collections, stats.Items, stats.ApproxBytes)
		if !stats.LastUpdated.IsZero() {
			fmt.Printf("updated:     %s\n", stats.LastUpdated.Local().Format(time.RFC3339))
		}
	case "clear":
		if err := engine.ClearCache(); err != nil {
			fatal(err)
		}
		fmt.Printf("%s cache cleared\n", okMark)
	default:
		usage()
	}
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}
	var secret string
	if _, err := fmt.Fscanln(os.Stdin, &secret); err != nil {
		return "", err
	}
	return secret, nil
}
