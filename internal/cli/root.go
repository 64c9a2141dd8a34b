package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prdraft/internal/client"
	"prdraft/internal/config"
	"prdraft/internal/draftfile"
	"prdraft/internal/format"
	"prdraft/internal/gitrepo"
	"prdraft/internal/logging"
)

type App struct {
	ConfigPath string
	Addr       string
	Dir        string
	LogLevel   string
	PrettyJSON bool
	Format     string

	cfg    *config.Config
	logger *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "prdraft",
		Short:        "Draft pull requests in a local file and preview them live",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the host for the repository in the current directory and open the preview
  prdraft serve --open

  # Show the preview of the draft in a terminal
  prdraft tui

  # Inspect a running host
  prdraft surfaces
  prdraft state --format yaml

  # Parse a draft document (shortcut for: prdraft draft parse PULL_REQUEST.md)
  prdraft PULL_REQUEST.md
`),
	}

	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app.logger != nil {
			_ = app.logger.Sync()
		}
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("PRDRAFT_CONFIG", ""), "Config file (toml)")
	cmd.PersistentFlags().StringVar(&app.Addr, "addr", "", "Host address (host:port); defaults to server.addr from config")
	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "Repository directory; defaults to repo.dir from config")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("PRDRAFT_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("PRDRAFT_FORMAT", "json"), "Output format (json|edn|yaml)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newOpenCmd(app))
	cmd.AddCommand(newSurfacesCmd(app))
	cmd.AddCommand(newStateCmd(app))
	cmd.AddCommand(newCloseCmd(app))
	cmd.AddCommand(newDraftCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newJournalCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newWebViewCmd(app))

	return cmd
}

// config loads the configuration once; flags override what it says.
func (app *App) config() (config.Config, error) {
	if app.cfg != nil {
		return *app.cfg, nil
	}
	c, err := config.Load(app.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if v := strings.TrimSpace(app.Addr); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(app.Dir); v != "" {
		c.Repo.Dir = v
	}
	if v := strings.TrimSpace(app.LogLevel); v != "" {
		c.Log.Level = v
	}
	app.cfg = &c
	return c, nil
}

func (app *App) log() (*zap.Logger, error) {
	if app.logger != nil {
		return app.logger, nil
	}
	c, err := app.config()
	if err != nil {
		return nil, err
	}
	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return nil, err
	}
	app.logger = l
	return l, nil
}

func (app *App) client() (*client.Client, error) {
	c, err := app.config()
	if err != nil {
		return nil, err
	}
	return client.New(c.Server.Addr)
}

// draftURI is the key of the draft belonging to the configured repository.
func (app *App) draftURI() (string, error) {
	c, err := app.config()
	if err != nil {
		return "", err
	}
	dir, err := filepath.Abs(c.Repo.Dir)
	if err != nil {
		return "", err
	}
	gitDir, ok, err := gitrepo.FindGitDir(dir)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", draftfile.ErrNotRepo, dir)
	}
	return draftfile.URI(draftfile.Path(gitDir)), nil
}

// keyArg is the surface key named on the command line, or the repository's draft.
func (app *App) keyArg(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	return app.draftURI()
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 10*time.Second)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		err = fmt.Errorf("%w (is `prdraft serve` running?)", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
