package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/saddatahmad19/deepdomain/internal/api"
	"github.com/saddatahmad19/deepdomain/internal/bridge"
	"github.com/saddatahmad19/deepdomain/internal/config"
	"github.com/saddatahmad19/deepdomain/internal/dispatch"
	"github.com/saddatahmad19/deepdomain/internal/events"
	"github.com/saddatahmad19/deepdomain/internal/history"
	"github.com/saddatahmad19/deepdomain/internal/lock"
	"github.com/saddatahmad19/deepdomain/internal/log"
	"github.com/saddatahmad19/deepdomain/internal/runner"
	"github.com/saddatahmad19/deepdomain/internal/scan"
	"github.com/saddatahmad19/deepdomain/internal/store"
	"github.com/saddatahmad19/deepdomain/internal/tools"
	"github.com/saddatahmad19/deepdomain/internal/tui"
	"github.com/saddatahmad19/deepdomain/internal/workspace"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "run":
		return runScan(args)
	case "tools":
		return runTools(args)
	case "history":
		return runHistory(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runScan(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	domain := fs.String("d", "", "Target domain (required)")
	output := fs.String("o", "", "Output directory (default ./deepdomain_<domain>)")
	mode := fs.String("mode", "quick", "Scan mode: quick or deep")
	configPath := fs.String("config", "", "Path to config file")
	listen := fs.String("listen", "", "Serve scan state on this address (overrides config)")
	noTUI := fs.Bool("no-tui", false, "Run without the terminal UI")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *domain == "" {
		fmt.Fprintln(os.Stderr, "Usage: deepdomain run -d <domain> [-o <dir>] [--mode quick|deep] [--config <file>] [--listen <addr>] [--no-tui]")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	profile, err := cfg.Mode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	outputDir := *output
	if outputDir == "" {
		outputDir = defaultOutputDir(*domain)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		return 1
	}
	stateDir := filepath.Join(outputDir, ".deepdomain")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create state directory: %v\n", err)
		return 1
	}

	runLock, err := lock.AcquireRunLock(stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer runLock.Release()

	// The TUI owns the terminal, so logs always go to a file in the run's
	// state directory.
	if *noTUI {
		log.Setup(cfg.Service.LogLevel, os.Stderr)
	} else if err := log.SetupFile(cfg.Service.LogLevel, filepath.Join(stateDir, "deepdomain.log")); err != nil {
		// SetupFile already fell back to stderr.
		fmt.Fprintf(os.Stderr, "Warning: logging to stderr, could not open log file: %v\n", err)
	}
	logger := log.WithComponent("main")

	st := store.New(cfg.Runner.MaxMemoryWrite)
	ws, err := workspace.NewManager(outputDir, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open workspace: %v\n", err)
		return 1
	}

	run := runner.New(cfg.Runner.MaxConcurrent)
	uiState := dispatch.NewState(cfg.UI.OutputBufferLines)
	hub := events.NewHub(256)
	dispatcher := dispatch.New(uiState, hub)
	dispatcher.Start()
	defer dispatcher.Stop()

	br := bridge.New(dispatcher, run, cfg.Runner.WallCap)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var journal *history.Journal
	runID := ""
	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path = filepath.Join(stateDir, "history.db")
		}
		journal, err = history.Open(ctx, path)
		if err != nil {
			logger.Warn("history journal unavailable", "error", err)
			journal = nil
		} else {
			defer journal.Close()
			runID, err = journal.StartRun(ctx, *domain, *mode, outputDir)
			if err != nil {
				logger.Warn("failed to record run", "error", err)
			}
		}
	}

	if missing := tools.NewChecker().Missing(tools.Required); len(missing) > 0 {
		br.Status(tools.InstallHint(missing), dispatch.SeverityWarning)
		logger.Warn("required tools missing", "tools", strings.Join(missing, ","))
	}

	apiListen := *listen
	if apiListen == "" && cfg.API.Enabled {
		apiListen = cfg.API.Listen
	}
	if apiListen != "" {
		server := api.New(api.Config{Listen: apiListen, APIKey: cfg.API.APIKey},
			dispatcher, hub, log.WithComponent("api"))
		go func() {
			if err := server.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
	}

	orchestrator := scan.New(*domain, *mode, profile, ws, br, journal, runID)

	scanDone := make(chan error, 1)
	go func() {
		scanDone <- orchestrator.Run(ctx)
	}()

	exitCode := 0
	if *noTUI {
		if err := <-scanDone; err != nil {
			logger.Error("scan aborted", "error", err)
			exitCode = 1
		}
	} else {
		model := tui.New(*domain, *mode, uiState, hub, func() {
			cancel()
			run.StopAll()
		})
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			exitCode = 1
		}
		cancel()
		run.StopAll()
		select {
		case <-scanDone:
		case <-time.After(5 * time.Second):
			logger.Warn("scan did not unwind in time")
		}
	}

	run.StopAll()
	if journal != nil && runID != "" {
		if err := journal.FinishRun(context.Background(), runID); err != nil {
			logger.Warn("failed to finish run record", "error", err)
		}
	}

	if *noTUI && exitCode == 0 {
		fmt.Printf("Scan complete. Results saved to: %s\n", outputDir)
	}
	return exitCode
}

func runTools(args []string) int {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	report := tools.NewChecker().Check()

	if *jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		for _, name := range report.Present {
			fmt.Printf("  ✓ %s\n", name)
		}
		for _, name := range report.Missing {
			fmt.Printf("  ✗ %s\n", name)
		}
		if hint := tools.InstallHint(report.Missing); hint != "" {
			fmt.Println(hint)
		}
	}

	if len(report.Missing) > 0 {
		return 1
	}
	return 0
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Path to history database (required)")
	limit := fs.Int("limit", 20, "Maximum runs to list")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: deepdomain history --db <output>/.deepdomain/history.db [--limit N]")
		return 1
	}

	ctx := context.Background()
	journal, err := history.Open(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		return 1
	}
	defer journal.Close()

	runs, err := journal.Runs(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return 0
	}

	for _, r := range runs {
		finished := r.FinishedAt
		if finished == "" {
			finished = "(incomplete)"
		}
		fmt.Printf("%s  %-24s %-6s %4d commands  %s -> %s\n",
			r.ID[:8], r.Domain, r.Mode, r.Commands, r.StartedAt, finished)
	}
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("deepdomain %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	buildTime := strings.TrimSpace(buildDate)
	if buildTime == "" || buildTime == "unknown" {
		buildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(buildTime); ok {
		info.BuildTime = normalized
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// defaultOutputDir derives the workspace directory from the domain, with
// dots flattened so the path stays a single component.
func defaultOutputDir(domain string) string {
	return "deepdomain_" + strings.ReplaceAll(domain, ".", "_")
}

func printUsage() {
	fmt.Print(`deepdomain - Multi-stage domain reconnaissance automation

Usage:
  deepdomain <command> [flags]

Commands:
  run       Run a full scan against a domain
  tools     Check which external scanning tools are installed
  history   List past runs from a history database
  version   Show version information
  help      Show this help

Run flags:
  -d <domain>        Target domain (required)
  -o <dir>           Output directory (default ./deepdomain_<domain>)
  --mode <name>      Scan mode: quick or deep (default quick)
  --config <file>    Path to YAML config file
  --listen <addr>    Serve live scan state over HTTP on this address
  --no-tui           Run headless, logging to stderr

Examples:
  deepdomain run -d example.com
  deepdomain run -d example.com --mode deep -o ./engagements/example
  deepdomain tools --json
`)
}
