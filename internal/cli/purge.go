package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ppiankov/purgelogs/internal/config"
	"github.com/ppiankov/purgelogs/internal/daemon"
	"github.com/ppiankov/purgelogs/internal/event"
	"github.com/ppiankov/purgelogs/internal/history"
	"github.com/ppiankov/purgelogs/internal/metrics"
	"github.com/ppiankov/purgelogs/internal/purge"
	"github.com/ppiankov/purgelogs/internal/reporter"
)

const (
	defaultLogPathDir    = "/var/www/logs"
	defaultRetentionDays = 31
)

// purgeFlags holds the root command's purge options.
type purgeFlags struct {
	logPathDir    string
	retentionDays int
	dryRun        bool
	buildSuccess  bool

	loop     int
	schedule string
	pidFile  string
	tui      bool

	report      string
	historyDB   string
	metricsAddr string
}

func addPurgeFlags(cmd *cobra.Command, f *purgeFlags) {
	cmd.Flags().StringVar(&f.logPathDir, "log-path-dir", defaultLogPathDir, "root of the CI log tree")
	cmd.Flags().IntVar(&f.retentionDays, "retention-days", defaultRetentionDays, "delete job dirs older than this many days")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "report what would be deleted without deleting")
	cmd.Flags().BoolVar(&f.buildSuccess, "build-success", false, "keep the latest successful buildset of every project")
	cmd.Flags().IntVar(&f.loop, "loop", 0, "repeat every N seconds instead of running once")
	cmd.Flags().StringVar(&f.schedule, "schedule", "", "repeat on a 5-field cron schedule instead of running once")
	cmd.Flags().StringVar(&f.pidFile, "pid-file", "", "PID lock file for loop mode")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "show a dashboard while looping")
	cmd.Flags().StringVar(&f.report, "report", "", "write each cycle report as JSON to this path")
	cmd.Flags().StringVar(&f.historyDB, "history-db", "", "record cycles in this SQLite database")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address in loop mode")
}

// applySettings fills every option not set on the command line from s.
func (f *purgeFlags) applySettings(changed func(string) bool, s *config.Settings) {
	if !changed("log-path-dir") && s.LogPathDir != "" {
		f.logPathDir = s.LogPathDir
	}
	if !changed("retention-days") && s.RetentionDays > 0 {
		f.retentionDays = s.RetentionDays
	}
	if !changed("dry-run") && s.DryRun {
		f.dryRun = true
	}
	if !changed("build-success") && s.BuildSuccess {
		f.buildSuccess = true
	}
	if !changed("loop") && !changed("schedule") {
		if s.Loop > 0 {
			f.loop = s.Loop
		}
		if s.Schedule != "" {
			f.schedule = s.Schedule
		}
	}
	if !changed("pid-file") && s.PIDFile != "" {
		f.pidFile = s.PIDFile
	}
	if !changed("report") && s.ReportPath != "" {
		f.report = s.ReportPath
	}
	if !changed("history-db") && s.HistoryDB != "" {
		f.historyDB = s.HistoryDB
	}
	if !changed("metrics-addr") && s.MetricsAddr != "" {
		f.metricsAddr = s.MetricsAddr
	}
}

func (f *purgeFlags) validate() error {
	if f.retentionDays < 0 {
		return fmt.Errorf("--retention-days must not be negative, got %d", f.retentionDays)
	}
	if f.loop < 0 {
		return fmt.Errorf("--loop must not be negative, got %d", f.loop)
	}
	if f.loop > 0 && f.schedule != "" {
		return errors.New("--loop and --schedule are mutually exclusive")
	}
	return nil
}

func (f *purgeFlags) looping() bool {
	return f.loop > 0 || f.schedule != ""
}

// cycleParams are the options that may change between cycles on reload.
type cycleParams struct {
	retentionDays int
	dryRun        bool
	buildSuccess  bool
}

func (f *purgeFlags) params() cycleParams {
	return cycleParams{
		retentionDays: f.retentionDays,
		dryRun:        f.dryRun,
		buildSuccess:  f.buildSuccess,
	}
}

// purgeRunner runs purge cycles against one root and fans their events out to
// the log, the cycle report, metrics and the dashboard.
type purgeRunner struct {
	root  string
	out   io.Writer
	color bool
	quiet bool

	reportPath string
	store      *history.Store
	metrics    *metrics.Metrics
	state      *daemon.State

	mu     sync.Mutex
	params cycleParams
}

func (r *purgeRunner) current() cycleParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

func (r *purgeRunner) setParams(p cycleParams) {
	r.mu.Lock()
	r.params = p
	r.mu.Unlock()
}

// cycle runs a single purge cycle and returns the engine error, if any.
// Report, history and metrics failures are logged, never returned.
func (r *purgeRunner) cycle(ctx context.Context) error {
	p := r.current()
	now := time.Now()
	rep := &reporter.CycleReport{
		CycleID:          uuid.NewString(),
		Root:             r.root,
		RetentionDays:    p.retentionDays,
		Cutoff:           purge.Cutoff(now, p.retentionDays),
		DryRun:           p.dryRun,
		ProtectBuildsets: p.buildSuccess,
		StartedAt:        now,
	}

	sinks := []event.Sink{reporter.NewLogSink(nil), rep}
	if r.metrics != nil {
		sinks = append(sinks, r.metrics)
	}
	if r.state != nil {
		r.state.BeginCycle(rep.CycleID)
		sinks = append(sinks, r.state)
	}

	slog.Info("purge cycle started",
		"cycle", rep.CycleID,
		"root", r.root,
		"cutoff", rep.Cutoff.Format(time.RFC3339),
		"dry_run", p.dryRun,
		"build_success", p.buildSuccess)

	engine := purge.NewEngine(event.Multi(sinks...), nil)
	res, err := engine.Purge(ctx, purge.Options{
		Root:             r.root,
		Cutoff:           rep.Cutoff,
		DryRun:           p.dryRun,
		ProtectBuildsets: p.buildSuccess,
	})
	rep.Finish(res, err)

	if r.metrics != nil {
		r.metrics.ObserveCycle(res, err, time.Now())
	}
	if r.state != nil {
		r.state.EndCycle(daemon.CycleSummary{
			CycleID:   rep.CycleID,
			StartedAt: rep.StartedAt,
			Duration:  rep.Duration,
			JobDirs:   rep.JobDirs,
			Deleted:   rep.Deleted,
			Protected: rep.Protected,
			Kept:      rep.Kept,
			DryRun:    rep.DryRun,
			Error:     rep.Error,
		})
	}

	if !r.quiet {
		text := reporter.NewTextReporter(r.out, r.color)
		text.PrintHeader(rep)
		text.PrintCycle(rep)
	}
	if r.reportPath != "" {
		if werr := reporter.WriteJSONReport(rep, r.reportPath); werr != nil {
			slog.Warn("failed to write cycle report", "path", r.reportPath, "error", werr)
		}
	}
	if r.store != nil {
		if herr := r.store.RecordCycle(context.WithoutCancel(ctx), rep); herr != nil {
			slog.Warn("failed to record cycle history", "error", herr)
		}
	}

	slog.Info("purge cycle finished",
		"cycle", rep.CycleID,
		"job_dirs", rep.JobDirs,
		"deleted", rep.Deleted,
		"protected", rep.Protected,
		"kept", rep.Kept,
		"duration", rep.Duration.Round(time.Millisecond))

	return err
}

// reload re-reads the settings file on top of the command-line flags.
func (r *purgeRunner) reload(path string, base purgeFlags, changed func(string) bool) {
	s, err := config.LoadSettings(path)
	if err != nil {
		slog.Warn("settings reload failed, keeping previous values", "error", err)
		return
	}
	f := base
	f.applySettings(changed, s)
	if err := f.validate(); err != nil {
		slog.Warn("reloaded settings rejected, keeping previous values", "error", err)
		return
	}

	r.setParams(f.params())
	slog.Info("settings reloaded",
		"retention_days", f.retentionDays,
		"dry_run", f.dryRun,
		"build_success", f.buildSuccess)
}

func runPurge(cmd *cobra.Command, flags *purgeFlags) error {
	base := *flags
	changed := cmd.Flags().Changed

	settings, err := config.LoadSettings(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags.applySettings(changed, settings)
	if err := flags.validate(); err != nil {
		return err
	}

	root, err := config.ResolveLogPath(flags.logPathDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r := &purgeRunner{
		root:       root,
		out:        out,
		color:      out == os.Stdout && isatty.IsTerminal(os.Stdout.Fd()),
		reportPath: flags.report,
		params:     flags.params(),
	}

	if flags.historyDB != "" {
		db, err := history.OpenSQLite(cmd.Context(), flags.historyDB)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		r.store = history.NewStore(db)
		defer func() { _ = r.store.Close() }()
	}

	if !flags.looping() {
		if flags.tui || flags.metricsAddr != "" || flags.pidFile != "" {
			slog.Warn("--tui, --metrics-addr and --pid-file only apply with --loop or --schedule")
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return r.cycle(ctx)
	}

	return runLoop(cmd, flags, base, r)
}

func runLoop(cmd *cobra.Command, flags *purgeFlags, base purgeFlags, r *purgeRunner) error {
	if flags.pidFile != "" {
		if err := daemon.AcquireLock(flags.pidFile, r.root); err != nil {
			return fmt.Errorf("acquire PID lock: %w", err)
		}
		defer daemon.ReleaseLock(flags.pidFile)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if flags.metricsAddr != "" {
		r.metrics = metrics.New(nil)
		srv := metrics.NewServer(flags.metricsAddr, r.metrics, slog.Default())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	if _, err := os.Stat(configFile); err == nil {
		changed := cmd.Flags().Changed
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := daemon.WatchFile(ctx, configFile, func() { r.reload(configFile, base, changed) }); err != nil {
				slog.Warn("settings watcher stopped", "error", err)
			}
		}()
	}

	cfg := daemon.LoopConfig{
		Interval: time.Duration(flags.loop) * time.Second,
		Schedule: flags.schedule,
		Cycle:    r.cycle,
	}
	if flags.tui {
		r.state = daemon.NewState()
		r.quiet = true
		cfg.State = r.state
	}

	loop, err := daemon.NewLoop(cfg)
	if err != nil {
		return fmt.Errorf("init purge loop: %w", err)
	}

	if !flags.tui {
		return loop.Run(ctx)
	}

	// the dashboard owns the terminal
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()

	model := daemon.NewDashboardModel(loop.State(), r.root, cancel)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	cancel()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
