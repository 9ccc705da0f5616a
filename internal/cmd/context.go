package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tenderdesk/internal/account"
	"github.com/felixgeelhaar/tenderdesk/internal/config"
	"github.com/felixgeelhaar/tenderdesk/internal/credstore"
	"github.com/felixgeelhaar/tenderdesk/internal/guard"
	"github.com/felixgeelhaar/tenderdesk/internal/log"
	"github.com/felixgeelhaar/tenderdesk/internal/pending"
	"github.com/felixgeelhaar/tenderdesk/internal/platform"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
	"github.com/felixgeelhaar/tenderdesk/internal/ux"
)

// CommandContext holds the persistent flags of one invocation.
// Commands build it in RunE instead of reading package globals:
//
//	func runCommand(cmd *cobra.Command, args []string) error {
//		cc, err := NewCommandContext(cmd)
//		if err != nil {
//			return err
//		}
//		// Use cc.Format, cc.ConfigPath, etc.
//	}
type CommandContext struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Format     string
	Ephemeral  bool
}

// NewCommandContext extracts the persistent flags from cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	logFormat, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	ephemeral, err := cmd.Flags().GetBool("ephemeral")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		Format:     format,
		Ephemeral:  ephemeral,
	}, nil
}

// LoadConfig reads the configuration and applies the flag overrides.
func (c *CommandContext) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}
	if c.Ephemeral {
		cfg.Store.Backend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Formatter returns the output formatter selected by --format.
func (c *CommandContext) Formatter(w io.Writer) (ux.Formatter, error) {
	return ux.NewFormatter(c.Format, &ux.FormatterOptions{Writer: w})
}

// workspace is the fully wired client for one invocation: config, logger,
// credential store, account service with a restored session, the pending
// verification marker and the route table.
type workspace struct {
	cc      *CommandContext
	cfg     *config.Config
	logger  *log.Logger
	store   *credstore.Store
	svc     *account.Service
	pending *pending.Manager
	routes  *guard.Routes
	out     ux.Formatter
}

// openWorkspace wires the client and runs the startup protocol. A stored
// session that cannot be read is logged and discarded; the command then
// runs anonymously.
func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return nil, err
	}
	out, err := cc.Formatter(cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	logger := log.New(cfg.LogConfig())
	log.SetDefaultLogger(logger)

	ctx := cmd.Context()
	store, err := credstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	state, writer := session.NewManager()
	client := platform.NewClient(cfg.API.BaseURL,
		platform.WithTimeout(cfg.RequestTimeout()),
		platform.WithLogger(logger),
	)
	svc := account.New(state, writer, store, client, account.WithLogger(logger))

	ws := &workspace{
		cc:      cc,
		cfg:     cfg,
		logger:  logger.Component("cmd"),
		store:   store,
		svc:     svc,
		pending: pending.NewManager(cfg.StateDir),
		routes:  guard.DefaultRoutes(),
		out:     out,
	}
	if err := svc.Restore(ctx); err != nil {
		ws.logger.WithError(err).WarnContext(ctx, "stored session discarded", "backend", store.Backend())
	}
	return ws, nil
}

// Close releases the credential store.
func (w *workspace) Close() {
	if err := w.store.Close(); err != nil {
		w.logger.WithError(err).Warn("closing credential store")
	}
}

// state returns the current session snapshot.
func (w *workspace) state() session.State {
	return w.svc.Session().Snapshot()
}

// requireSession fails with a coded error when nobody is signed in.
func (w *workspace) requireSession(operation string) error {
	if !w.state().IsAuthenticated {
		return notAuthenticated(operation)
	}
	return nil
}

// withWorkspace adapts a workspace-aware run function to cobra's RunE.
func withWorkspace(run func(ctx context.Context, ws *workspace, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd)
		if err != nil {
			return err
		}
		defer ws.Close()
		return run(cmd.Context(), ws, cmd, args)
	}
}
