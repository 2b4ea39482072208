// Package cli implements the paladium command line: an admin and annotator
// client for the annotation backend.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mmynk/paladium/internal/config"
	"github.com/mmynk/paladium/internal/gateway"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/notify"
	"github.com/mmynk/paladium/internal/reconcile"
	"github.com/mmynk/paladium/internal/session"
	"github.com/mmynk/paladium/pkg/logging"
)

// App holds the state shared by every command of one invocation.
type App struct {
	ConfigPath string
	APIURL     string
	LogLevel   string
	JSON       bool

	cfg      *config.Config
	logger   *slog.Logger
	client   *gateway.Client
	store    session.Store
	sessions *session.Manager
	notifier *notify.Notifier
	metrics  *prometheus.Registry

	// reported is set once an error notification has been printed, so the
	// same failure is not printed twice.
	reported bool
}

// Run executes the command line and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	return run(args, os.Stdin, stdout, stderr)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := &App{}
	cmd := NewRootCmd(app)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	app.close()
	if err != nil {
		if !app.reported {
			fmt.Fprintln(stderr, errorStyle.Render(message(err)))
		}
		return 1
	}
	if app.reported {
		// An optimistic change was rejected by the backend after the fact.
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "paladium",
		Short:         "Manage annotators, groups, images and tags of an annotation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Sign in as an admin
  paladium login --type admin --email admin@example.com --password secret

  # Put two images into a group
  paladium images assign --group 3 12 13

  # Export the tag report
  paladium export --out tags.xlsx
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Path to a YAML config file (default $PALADIUM_CONFIG)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", "", "Backend base URL (overrides api.base_url)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error, default warn)")
	cmd.PersistentFlags().BoolVar(&app.JSON, "json", false, "Print JSON instead of tables")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newPasswdCmd(app))
	cmd.AddCommand(newPeopleCmd(app))
	cmd.AddCommand(newGroupsCmd(app))
	cmd.AddCommand(newImagesCmd(app))
	cmd.AddCommand(newTagsCmd(app))
	cmd.AddCommand(newAnnotateCmd(app))
	cmd.AddCommand(newExportCmd(app))

	return cmd
}

func (app *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return err
	}
	if app.APIURL != "" {
		cfg.API.BaseURL = app.APIURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	app.cfg = cfg

	level := app.LogLevel
	if level == "" {
		level = "warn"
	}
	app.logger = logging.New(cmd.ErrOrStderr(), logging.ParseLevel(level), logging.ParseFormat(cfg.Log.Format))

	app.notifier = notify.New(notify.WithTTL(cfg.Notify.TTL), notify.WithLogger(app.logger))
	stderr := cmd.ErrOrStderr()
	app.notifier.Subscribe(func(n notify.Notification) {
		if n.Kind == notify.KindError {
			app.reported = true
		}
		fmt.Fprintln(stderr, renderNotification(n))
	})

	opts := []gateway.Option{gateway.WithLogger(app.logger)}
	if cfg.API.MetricsFile != "" {
		app.metrics = prometheus.NewRegistry()
		opts = append(opts, gateway.WithMetrics(gateway.NewMetrics(app.metrics)))
	}
	app.client = gateway.New(
		gateway.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout},
		opts...,
	)

	store, err := openSessionStore(cmd.Context(), cfg.Session)
	if err != nil {
		return err
	}
	app.store = store
	app.sessions = session.NewManager(store, app.client, session.WithLogger(app.logger))
	app.sessions.Bind(app.client)
	return nil
}

func openSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case config.SessionRedis:
		return session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
	case config.SessionMemory:
		return session.NewMemoryStore(), nil
	default:
		return session.NewSQLiteStore(cfg.Path)
	}
}

func (app *App) close() {
	if app.metrics != nil {
		if err := prometheus.WriteToTextfile(app.cfg.API.MetricsFile, app.metrics); err != nil {
			app.logger.Warn("Failed to write metrics", "path", app.cfg.API.MetricsFile, "error", err)
		}
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Warn("Failed to close session store", "error", err)
		}
	}
}

// requireUser restores the stored session and checks its user type. An
// empty userType accepts either.
func (app *App) requireUser(ctx context.Context, userType models.UserType) (models.User, error) {
	user, err := app.sessions.Init(ctx, userType)
	switch {
	case errors.Is(err, session.ErrNoSession):
		return models.User{}, errors.New("not signed in, run paladium login first")
	case errors.Is(err, session.ErrSessionExpired):
		return models.User{}, errors.New("session expired, run paladium login again")
	case errors.Is(err, session.ErrWrongUserType):
		return models.User{}, fmt.Errorf("this command needs an %s session, signed in as %s", userType, user.Type)
	case err != nil:
		return models.User{}, err
	}
	return user, nil
}

// reconciler returns a reconciler over a fresh snapshot. The caller must be
// signed in as an admin.
func (app *App) reconciler(ctx context.Context) (*reconcile.Reconciler, error) {
	if _, err := app.requireUser(ctx, models.UserTypeAdmin); err != nil {
		return nil, err
	}
	rec := reconcile.New(app.client,
		reconcile.WithNotifier(app.notifier),
		reconcile.WithLogger(app.logger),
		reconcile.WithRollback(app.cfg.Reconcile.Rollback),
		reconcile.WithConcurrency(app.cfg.API.Concurrency),
	)
	if err := rec.Load(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

func (app *App) writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// message returns the text to show for err: the backend's detail when there
// is one.
func message(err error) string {
	var sessErr *session.Error
	if errors.As(err, &sessErr) {
		return sessErr.Message
	}
	return gateway.Detail(err, err.Error())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
