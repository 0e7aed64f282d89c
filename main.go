package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabgruppen/internal/analyzer"
	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/background"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/export"
	"github.com/lotas/tabgruppen/internal/firefox"
	"github.com/lotas/tabgruppen/internal/server"
	"github.com/lotas/tabgruppen/internal/settings"
	"github.com/lotas/tabgruppen/internal/stats"
	"github.com/lotas/tabgruppen/internal/storage"
	"github.com/lotas/tabgruppen/internal/tui"
	"github.com/lotas/tabgruppen/internal/types"
)

// actionRetention is how long the action history is kept.
const actionRetention = 30 * 24 * time.Hour

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("Error loading config: %v", err)
	}

	switch cmd {
	case "serve":
		err = runServe(cfg, args)
	case "stats":
		err = runStats(cfg, args)
	case "rules":
		runRules(cfg, args)
	case "audit":
		runAudit(cfg, args)
	case "profiles":
		runProfiles()
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(2)
	}
	if err != nil {
		fatalf("Error %v", err)
	}
}

func printHelp() {
	fmt.Print(`tabgruppen: groups tabs opened from the same page and closes duplicates

Usage:
  tabgruppen [serve]                                   Run the daemon (default)
    --port <n>             WebSocket port for the extension (default: 19192)
    --settings <path>      Settings file (default: ~/.config/tabgruppen/settings.yaml)
    --tui                  Show the live dashboard instead of logging to stderr

  tabgruppen stats                                     Show counters and recent actions
    --reset                Reset all counters
    --n <n>                Number of recent actions to show (default: 20)

  tabgruppen rules                                     List the configured domain rules
    --settings <path>      Settings file
    --init                 Write the default settings if the file does not exist

  tabgruppen audit                                     Dry-run the rules over a saved Firefox session
    --profile <name>       Firefox profile name (default: the default profile)
    --settings <path>      Settings file
    --json                 Output JSON instead of markdown
    --out <file>           Output file path (default: stdout)

  tabgruppen profiles                                  List Firefox profiles

Environment:
  TABGRUPPEN_PORT        WebSocket port (overridden by --port)
  TABGRUPPEN_SETTINGS    Settings file (overridden by --settings)
  TABGRUPPEN_DB          Counter database path
  TABGRUPPEN_LOG_DIR     Log directory
  TABGRUPPEN_LOG_LEVEL   debug, info, warn or error (default: info)
  TABGRUPPEN_PROFILE     Default Firefox profile for audit (overridden by --profile)

A .env file in the working directory is read as well.
`)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// runServe runs the daemon until it is interrupted. Errors are returned rather
// than fatal so the log file and database are closed on the way out.
func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", cfg.Port, "WebSocket port for the extension")
	settingsPath := fs.String("settings", cfg.SettingsPath, "Settings file")
	withTUI := fs.Bool("tui", false, "Show the live dashboard")
	fs.Parse(args)

	if err := applog.Init(applog.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Stderr: !*withTUI}); err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer applog.Close()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if n, err := storage.PruneActions(db, time.Now().Add(-actionRetention)); err != nil {
		applog.Error("storage.prune", err)
	} else if n > 0 {
		applog.Info("storage.pruned", "actions", n)
	}

	store, err := settings.Open(*settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reloadOnHangup(ctx, store)

	recorder := storage.NewRecorder(db)
	srv := server.New(*port)
	srv.SetStatsFunc(recorder.Counters)

	var feed *stats.Feed
	var rec stats.Recorder = recorder
	if *withTUI {
		feed = stats.NewFeed(256)
		rec = stats.Multi(recorder, feed)
	}
	bg := background.New(srv, store, rec)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(ctx) }()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := bg.Run(ctx, srv.Messages()); err != nil && !errors.Is(err, context.Canceled) {
			applog.Error("background.run", err)
		}
	}()

	if *withTUI {
		model := tui.NewModel(tui.Source{
			Feed:      feed,
			Counters:  recorder.Counters,
			Connected: srv.Connected,
			Port:      *port,
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
	}

	select {
	case err := <-serveErr:
		stop()
		<-runDone
		if err != nil {
			applog.Error("server.listen", err)
			return fmt.Errorf("serving: %w", err)
		}
	case <-ctx.Done():
		<-serveErr
		<-runDone
	}
	applog.Info("server.stopped")
	return nil
}

// reloadOnHangup re-reads the settings file on SIGHUP.
func reloadOnHangup(ctx context.Context, store *settings.Store) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := store.Reload(); err != nil {
				applog.Error("settings.reload", err, "path", store.Path())
			}
		}
	}
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	return storage.OpenDB(cfg.DBPath)
}

func runStats(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	reset := fs.Bool("reset", false, "Reset all counters")
	n := fs.Int("n", 20, "Number of recent actions to show")
	fs.Parse(args)

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if *reset {
		if err := storage.ResetCounters(db); err != nil {
			return fmt.Errorf("resetting counters: %w", err)
		}
		fmt.Println("Counters reset.")
		return nil
	}

	counters, err := storage.Counters(db)
	if err != nil {
		return fmt.Errorf("reading counters: %w", err)
	}
	headerStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	fmt.Println(headerStyle.Render("Counters"))
	for _, name := range []string{types.CounterGroupsCreated, types.CounterTabsDeduplicated} {
		fmt.Printf("  %-26s %d\n", name, counters[name])
	}

	actions, err := storage.RecentActions(db, *n)
	if err != nil {
		return fmt.Errorf("reading actions: %w", err)
	}
	fmt.Println()
	fmt.Println(headerStyle.Render("Recent actions"))
	if len(actions) == 0 {
		fmt.Println(dimStyle.Render("  none"))
	}
	for _, a := range actions {
		fmt.Printf("  %s  %-18s %s\n", dimStyle.Render(a.At.Local().Format("2006-01-02 15:04")), a.Kind, a.Detail)
	}
	return nil
}

func runRules(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	settingsPath := fs.String("settings", cfg.SettingsPath, "Settings file")
	initFile := fs.Bool("init", false, "Write the default settings if the file does not exist")
	fs.Parse(args)

	if *initFile {
		if _, err := os.Stat(*settingsPath); err == nil {
			fatalf("%s already exists", *settingsPath)
		}
		store, err := settings.Open(*settingsPath)
		if err != nil {
			fatalf("Error loading settings: %v", err)
		}
		if err := store.Save(); err != nil {
			fatalf("Error writing settings: %v", err)
		}
		fmt.Printf("Wrote %s\n", *settingsPath)
		return
	}

	s, err := settings.Load(*settingsPath)
	if err != nil {
		fatalf("Error loading settings: %v", err)
	}

	onOff := func(b bool) string {
		if b {
			return lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("on ")
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("off")
	}
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Printf("%s  grouping %s  dedup %s  notifications %s\n\n",
		headerStyle.Render(*settingsPath),
		onOff(s.GlobalGroupingEnabled), onOff(s.GlobalDeduplicationEnabled), onOff(s.ShowNotifications))

	if len(s.DomainRules) == 0 {
		fmt.Println("No domain rules.")
		return
	}

	col := lipgloss.NewStyle().Width(24)
	fmt.Println(headerStyle.Render(col.Render("LABEL") + col.Render("FILTER") + "ON  GRP DUP MODE           NAME"))
	for _, r := range s.DomainRules {
		name := string(r.GroupNameSource)
		if g, ok := s.LogicalGroupByID(r.GroupID); ok {
			name += " (" + g.Name + ")"
		}
		fmt.Printf("%s%s%s %s %s %-14s %s\n",
			col.Render(r.Label), col.Render(r.DomainFilter),
			onOff(r.Enabled), onOff(r.GroupingEnabled), onOff(r.DeduplicationEnabled),
			r.DeduplicationMatchMode, name)
	}
}

func runAudit(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name")
	settingsPath := fs.String("settings", cfg.SettingsPath, "Settings file")
	jsonFlag := fs.Bool("json", false, "Output JSON instead of markdown")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	fs.Parse(args)

	s, err := settings.Load(*settingsPath)
	if err != nil {
		fatalf("Error loading settings: %v", err)
	}
	data, err := firefox.LoadSession(resolveProfileName(*profileName))
	if err != nil {
		fatalf("Error: %v", err)
	}

	report := analyzer.Audit(data, s)

	var output string
	if *jsonFlag {
		output, err = export.JSON(report)
		if err != nil {
			fatalf("Error generating JSON: %v", err)
		}
	} else {
		output = export.Markdown(report)
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(output), 0644); err != nil {
			fatalf("Error writing file: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Exported to %s\n", *outFile)
		return
	}
	fmt.Print(output)
}

func resolveProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("TABGRUPPEN_PROFILE")
}

func runProfiles() {
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		fatalf("Error discovering Firefox profiles: %v", err)
	}
	if len(profiles) == 0 {
		fatalf("No Firefox profiles found.")
	}

	sort.SliceStable(profiles, func(i, j int) bool { return profiles[i].IsDefault && !profiles[j].IsDefault })
	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}
