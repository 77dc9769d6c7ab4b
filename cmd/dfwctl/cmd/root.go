package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Sergeydigl3/dfwctl/internal/config"
	"github.com/Sergeydigl3/dfwctl/internal/dfw"
	"github.com/Sergeydigl3/dfwctl/internal/logging"
	"github.com/Sergeydigl3/dfwctl/internal/nsx"
	"github.com/Sergeydigl3/dfwctl/internal/output"
)

var (
	cfgFile      string
	managerURL   string
	outputFormat string
	logLevel     string
	retries      int
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dfwctl",
	Short: "NSX distributed firewall client",
	Long: `Command-line client for the distributed firewall of an NSX manager.

Lists, reads, creates and deletes firewall sections and rules, and edits rule
clauses. Every change is submitted with the version tag read just before it,
so concurrent edits by other clients are detected instead of overwritten.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVarP(&managerURL, "manager", "m", "", "manager URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", output.FormatTable, "output format: table, yaml or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 0, "times to retry a change rejected because of a concurrent modification")
}

// app holds what a command needs for one invocation.
type app struct {
	coordinator *dfw.Coordinator
	index       *dfw.Index
	renderer    output.Renderer
	logger      *slog.Logger
}

// newSession creates the manager session.
func newSession(cfg *config.Config, logger *slog.Logger) dfw.Session {
	return nsx.NewClient(cfg.Manager.URL,
		nsx.WithCredentials(cfg.Manager.Username, cfg.Manager.Password),
		nsx.WithTimeout(cfg.Manager.Timeout),
		nsx.WithInsecureSkipVerify(cfg.Manager.InsecureSkipVerify),
		nsx.WithScope(cfg.Manager.ScopeID),
		nsx.WithLogger(logger),
	)
}

// newApp loads the configuration, applies flag overrides and opens the session.
func newApp() (*app, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if managerURL != "" {
		cfg.Manager.URL = managerURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	renderer, err := output.NewRenderer(outputFormat)
	if err != nil {
		return nil, err
	}

	logger := logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	coordinator := dfw.NewCoordinator(newSession(cfg, logger), logger)

	return &app{
		coordinator: coordinator,
		index:       coordinator.Index(),
		renderer:    renderer,
		logger:      logger,
	}, nil
}

func (a *app) render(cmd *cobra.Command, v output.View) error {
	return a.renderer.Render(cmd.OutOrStdout(), v)
}

// withRetry runs fn again when the manager rejected its write because the
// version tag went stale, up to --retries times.
func (a *app) withRetry(op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, dfw.ErrConcurrentModification) || attempt >= retries {
			return err
		}
		a.logger.Warn("concurrent modification, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
		)
	}
}
