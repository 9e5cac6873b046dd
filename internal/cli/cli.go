package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nlkomaru/vrc-playtime/internal/config"
	"github.com/Nlkomaru/vrc-playtime/internal/discord"
	"github.com/Nlkomaru/vrc-playtime/internal/job"
	"github.com/Nlkomaru/vrc-playtime/internal/logger"
	"github.com/Nlkomaru/vrc-playtime/internal/notifier"
	"github.com/Nlkomaru/vrc-playtime/internal/scheduler"
	"github.com/Nlkomaru/vrc-playtime/internal/server"
	"github.com/Nlkomaru/vrc-playtime/internal/steam"
	"github.com/Nlkomaru/vrc-playtime/internal/telemetry"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitNotSent = 2

	serviceName     = "vrc-playtime"
	shutdownTimeout = 30 * time.Second
)

// Version is set at build time with -ldflags "-X ...cli.Version=..."
var Version = "dev"

var (
	flagConfigFile    string
	flagEnvFiles      []string
	flagLogLevel      string
	flagTrace         bool
	flagDryRun        bool
	flagSchedule      string
	flagAddr          string
	flagTestScheduled bool
	flagCron          string
	flagStrict        bool
)

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vrc-playtime",
		Short: "Post VRChat playtime from Steam to a Discord webhook",
		Long: `Reads the lifetime VRChat playtime of one Steam account and posts it
to a Discord webhook, either on a cron schedule (serve) or once (run).

Secrets come from STEAM_API_KEY, STEAM_USER_ID and DISCORD_WEBHOOK_URL,
which may also be placed in .dev.vars or .env.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfigFile, "config", "", "Config file (default: ./config.yaml or ~/.config/vrc-playtime/config.yaml)")
	pf.StringSliceVar(&flagEnvFiles, "env-file", nil, "Dotenv files to load (default: .dev.vars,.env.local,.env)")
	pf.StringVar(&flagLogLevel, "log-level", "INFO", "Log level: debug, info, warn or error")
	pf.BoolVar(&flagTrace, "trace", false, "Write OpenTelemetry spans to stderr")
	pf.BoolVar(&flagDryRun, "dry-run", false, "Print the Discord payload instead of posting it")
	pf.String("steam-api-url", steam.OwnedGamesURL, "GetOwnedGames endpoint")

	cmd.AddCommand(newServeCmd(), newRunCmd(), newVersionCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the check on a cron schedule and serve the diagnostic endpoint",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().StringVar(&flagSchedule, "schedule", scheduler.DefaultSchedule, "Cron schedule (5 fields)")
	cmd.Flags().StringVar(&flagAddr, "addr", ":8787", "Listen address for the diagnostic endpoint")
	cmd.Flags().BoolVar(&flagTestScheduled, "test-scheduled", false, "Enable GET /__scheduled?cron=... to fire a check by hand")

	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single check and exit",
		Args:  cobra.NoArgs,
		RunE:  runOnce,
	}

	cmd.Flags().StringVar(&flagCron, "cron", "", "Schedule expression to report as the trigger (default: configured schedule)")
	cmd.Flags().BoolVar(&flagStrict, "strict", false, "Exit with code 2 when no notification was sent")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// app is everything a command needs after configuration is resolved
type app struct {
	cfg      config.Config
	log      *logger.Logger
	runner   *job.Runner
	shutdown telemetry.ShutdownFunc
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: flagConfigFile,
		EnvFiles:   flagEnvFiles,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.New(level, cmd.OutOrStdout())
	logger.SetDefault(log)

	if missing := cfg.MissingSecrets(); len(missing) > 0 {
		log.Warn("Secrets are not configured; checks will fail until they are set", logger.Fields{
			"missing": strings.Join(missing, ","),
		})
	}

	return &app{
		cfg:      cfg,
		log:      log,
		runner:   newRunner(cfg, flagDryRun, log),
		shutdown: telemetry.InitTracer(cfg.Trace, serviceName, Version, cmd.ErrOrStderr(), log),
	}, nil
}

// newRunner builds the fetch-then-notify pipeline from explicit configuration
func newRunner(cfg config.Config, dryRun bool, log *logger.Logger) *job.Runner {
	fetcher := steam.NewClientWithURL(cfg.SteamAPIURL, cfg.SteamAPIKey, cfg.SteamUserID, log)

	var n notifier.Notifier
	if dryRun {
		n = notifier.NewDryRunNotifier()
	} else {
		n = notifier.NewDiscordNotifier(discord.NewClient(cfg.DiscordWebhookURL, log))
	}

	return job.NewRunner(fetcher, n, log)
}

// runOnce performs a single check
func runOnce(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.flushTraces()

	cron := flagCron
	if cron == "" {
		cron = a.cfg.Schedule
	}

	result := a.runner.Run(cmd.Context(), cron)

	if flagStrict && result.Outcome != job.OutcomeSent {
		return &exitError{code: ExitNotSent, err: fmt.Errorf("no notification sent (%s)", result.Outcome)}
	}
	return nil
}

// runServe starts the scheduler and the diagnostic server until interrupted
func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.flushTraces()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(a.cfg.Schedule, func(ctx context.Context, spec string) {
		a.runner.Run(ctx, spec)
	}, a.log)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr: a.cfg.ListenAddr,
		Handler: server.NewRouter(a.runner, server.Options{
			TestScheduled: flagTestScheduled,
		}, a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched.Start(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("HTTP shutdown error", nil, err)
		}
	}()

	a.log.Info("Listening", logger.Fields{
		"addr":           a.cfg.ListenAddr,
		"test_scheduled": flagTestScheduled,
		"dry_run":        flagDryRun,
	})
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		_ = sched.Stop(context.Background())
		return fmt.Errorf("listening on %s: %w", a.cfg.ListenAddr, err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		a.log.Error("Scheduler shutdown error", nil, err)
	}

	a.log.Info("Stopped", nil)
	return nil
}

func (a *app) flushTraces() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.log.Error("Flushing traces failed", nil, err)
	}
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(ExitError)
	}
}
