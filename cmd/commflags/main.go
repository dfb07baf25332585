// commflags manages the communicator daemon's persistent health flags:
// list the flags currently raised on this system, raise or clear a flag,
// inspect the transition history, and push digests to operators.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/setevik/communicatord/internal/config"
	"github.com/setevik/communicatord/internal/flags"
	"github.com/setevik/communicatord/internal/history"
	"github.com/setevik/communicatord/internal/reporter"
	"github.com/setevik/communicatord/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "list":
			runList(os.Args[2:])
			return
		case "raise":
			runRaise(os.Args[2:])
			return
		case "down":
			runDown(os.Args[2:])
			return
		case "status":
			runStatus(os.Args[2:])
			return
		case "history":
			runHistory(os.Args[2:])
			return
		case "digest":
			runDigest(os.Args[2:])
			return
		case "test-ntfy":
			runTestNtfy(os.Args[2:])
			return
		case "version":
			fmt.Println("commflags", version.Current())
			return
		}
	}

	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: commflags <command> [flags]

commands:
  list       show the flags currently raised on this system
  raise      raise (or re-raise) a flag
  down       clear a flag
  status     show registry status
  history    query the flag transition history
  digest     summarize recent flag activity
  test-ntfy  send a test notification
  version    print version and exit`)
}

// loadConfig reads the config and primes the flags package with the
// configured directory and load ceiling.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	flags.SetDirectory(cfg.Flags.Path)
	flags.SetLimit(cfg.Flags.Limit)
	return cfg
}

// --- list subcommand ---

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	loadConfig(*configPath)
	setupLogging("error") // quiet for CLI output

	fmt.Print(reporter.FormatTable(flags.LoadAll()))
}

// --- raise subcommand ---

func runRaise(args []string) {
	fs := flag.NewFlagSet("raise", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	unit := fs.String("unit", "", "unit name (required)")
	section := fs.String("section", "", "section name (required)")
	name := fs.String("name", "", "flag name (required)")
	message := fs.String("message", "", "message explaining the problem (required)")
	priority := fs.Int("priority", flags.DefaultPriority, "priority 0..100")
	manual := fs.Bool("manual", false, "require manual clearance")
	source := fs.String("source", "", "source file raising the flag")
	function := fs.String("function", "", "function raising the flag")
	line := fs.Int("line", 0, "line number raising the flag")
	var tags stringList
	fs.Var(&tags, "tag", "tag to attach (repeatable)")
	fs.Parse(args)

	if *unit == "" || *section == "" || *name == "" || *message == "" {
		fmt.Fprintln(os.Stderr, "error: -unit, -section, -name, and -message are required")
		os.Exit(2)
	}

	cfg := loadConfig(*configPath)
	setupLogging(cfg.Log.Level)

	f, err := flags.New(*unit, *section, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	f.SetMessage(*message).
		SetPriority(*priority).
		SetManualDown(*manual).
		SetSourceFile(*source).
		SetFunction(*function).
		SetLine(*line)
	for _, tag := range tags {
		if _, err := f.AddTag(tag); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if !f.Save() {
		fmt.Fprintln(os.Stderr, "error: could not save the flag; is the flags directory available?")
		os.Exit(1)
	}
	fmt.Printf("flag %s/%s/%s raised\n", f.Unit(), f.Section(), f.Name())

	recordAndNotify(cfg, f, history.ActionRaise)
}

// --- down subcommand ---

func runDown(args []string) {
	fs := flag.NewFlagSet("down", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	unit := fs.String("unit", "", "unit name (required)")
	section := fs.String("section", "", "section name (required)")
	name := fs.String("name", "", "flag name (required)")
	force := fs.Bool("force", false, "clear the flag even if it requires manual clearance")
	fs.Parse(args)

	if *unit == "" || *section == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "error: -unit, -section, and -name are required")
		os.Exit(2)
	}

	cfg := loadConfig(*configPath)
	setupLogging(cfg.Log.Level)

	f, err := flags.New(*unit, *section, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Save never checks manual_down; that contract lives with callers
	// like this one.
	if existing, err := flags.Load(f.Filename()); err == nil {
		if existing.ManualDown() && !*force {
			fmt.Fprintf(os.Stderr, "error: flag %s/%s/%s requires manual clearance, use -force\n",
				f.Unit(), f.Section(), f.Name())
			os.Exit(1)
		}
		f = existing
	}

	f.SetState(flags.StateDown)
	if !f.Save() {
		fmt.Fprintln(os.Stderr, "error: could not clear the flag")
		os.Exit(1)
	}
	fmt.Printf("flag %s/%s/%s cleared\n", f.Unit(), f.Section(), f.Name())

	recordAndNotify(cfg, f, history.ActionClear)
}

// recordAndNotify appends the transition to the history and, for raises
// past the cooldown, pushes a notification. Both are best effort; a
// failure never undoes the flag operation itself.
func recordAndNotify(cfg *config.Config, f *flags.Flag, action history.Action) {
	db, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Warn("could not open history database", "error", err)
		db = nil
	}

	shouldNotify := action == history.ActionRaise
	if db != nil {
		defer db.Close()

		if action == history.ActionRaise {
			cooldown, err := db.CheckCooldown(f, time.Hour)
			if err != nil {
				slog.Warn("cooldown check failed", "error", err)
			} else {
				shouldNotify = cooldown.ShouldNotify
			}
		}

		if err := db.Record(f, action); err != nil {
			slog.Warn("could not record transition", "error", err)
		}
	}

	if shouldNotify {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := reporter.NewNotifier(cfg).Notify(ctx, f); err != nil {
			slog.Warn("could not send notification", "error", err)
		}
	}
}

// --- status subcommand ---

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	setupLogging("error")

	fmt.Printf("Version:     %s\n", version.Current())

	dir := flags.Directory()
	if dir == "" {
		fmt.Println("Flags dir:   unresolved (directory missing?)")
	} else {
		fmt.Printf("Flags dir:   %s\n", dir)
	}

	raised := flags.LoadAll()
	fmt.Printf("Raised:      %d flag(s)\n", len(raised))

	var highest *flags.Flag
	for _, f := range raised {
		if highest == nil || f.Priority() > highest.Priority() {
			highest = f
		}
	}
	if highest != nil {
		fmt.Printf("Highest:     [%d] %s/%s/%s — %s\n",
			highest.Priority(), highest.Unit(), highest.Section(), highest.Name(),
			strings.SplitN(highest.Message(), "\n", 2)[0])
	}

	db, err := history.Open(cfg.History.Path)
	if err != nil {
		fmt.Printf("History:     unavailable (%v)\n", err)
		return
	}
	defer db.Close()

	count, _ := db.Count()
	fmt.Printf("History:     %d transition(s)\n", count)
	fmt.Printf("History db:  %s\n", cfg.History.Path)
}

// --- history subcommand ---

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	last := fs.String("last", "24h", "time window (e.g. 24h, 7d, 30d)")
	unit := fs.String("unit", "", "filter by unit")
	action := fs.String("action", "", "filter by action (raise, clear)")
	limit := fs.Int("limit", 50, "max transitions to show")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	setupLogging("error")

	since, err := parseDuration(*last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -last value %q: %v\n", *last, err)
		os.Exit(1)
	}

	db, err := history.Open(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening history: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	transitions, err := db.Query(history.Filter{
		Since:  time.Now().Add(-since),
		Unit:   *unit,
		Action: history.Action(*action),
		Limit:  *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "query error: %v\n", err)
		os.Exit(1)
	}

	if len(transitions) == 0 {
		fmt.Println("No transitions found.")
		return
	}

	for _, tr := range transitions {
		ts := tr.CreatedAt.Local().Format("2006-01-02 15:04:05")
		fmt.Printf("%s  %-5s [%d] %s/%s/%s\n", ts, tr.Action, tr.Priority, tr.Unit, tr.Section, tr.Name)
		if tr.Message != "" {
			fmt.Printf("             %s\n", strings.SplitN(tr.Message, "\n", 2)[0])
		}
	}
	fmt.Printf("\nTotal: %d transition(s)\n", len(transitions))
}

// --- digest subcommand ---

func runDigest(args []string) {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	send := fs.Bool("send", false, "send digest via ntfy (otherwise print to stdout)")
	last := fs.String("last", "7d", "time window for digest")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	setupLogging("error")

	duration, err := parseDuration(*last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -last value: %v\n", err)
		os.Exit(1)
	}

	db, err := history.Open(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening history: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	until := time.Now()
	since := until.Add(-duration)

	transitions, err := db.Query(history.Filter{Since: since, Until: until})
	if err != nil {
		fmt.Fprintf(os.Stderr, "query error: %v\n", err)
		os.Exit(1)
	}

	digest := reporter.BuildDigest(transitions, since, until)
	body := reporter.FormatDigest(digest)

	if !*send {
		fmt.Print(body)
		return
	}

	if cfg.Ntfy.URL == "" {
		fmt.Fprintln(os.Stderr, "error: ntfy.url not configured")
		os.Exit(1)
	}

	title := reporter.FormatDigestTitle(since, until)
	if err := sendDigestNtfy(cfg.Ntfy.URL, title, body); err != nil {
		fmt.Fprintf(os.Stderr, "error sending digest: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Digest sent successfully.")
}

func sendDigestNtfy(url, title, body string) error {
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", "low")
	req.Header.Set("Tags", "chart")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

// --- test-ntfy subcommand ---

func runTestNtfy(args []string) {
	fs := flag.NewFlagSet("test-ntfy", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	setupLogging(cfg.Log.Level)

	if cfg.Ntfy.URL == "" {
		fmt.Fprintln(os.Stderr, "error: ntfy.url not configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := reporter.NewNotifier(cfg).Notify(ctx, reporter.TestFlag()); err != nil {
		fmt.Fprintf(os.Stderr, "error sending test notification: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Test notification sent successfully.")
}

// --- utilities ---

// stringList collects repeatable string flags.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// parseDuration extends time.ParseDuration with support for "d" (days) suffix.
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		s = strings.TrimSuffix(s, "d")
		var days int
		if _, err := fmt.Sscanf(s, "%d", &days); err != nil {
			return 0, fmt.Errorf("invalid days format: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
