// Package cmd implements the codepad command line.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/config"
	"github.com/agentic-research/codepad/internal/execclient"
	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/ingest"
	"github.com/agentic-research/codepad/internal/logging"
	"github.com/agentic-research/codepad/internal/workspace"
)

var (
	configPath        string
	logLevel          string
	logFormat         string
	executeURL        string
	downloadDir       string
	logContentUpdates bool
	formatOnExport    bool
	selector          string

	// cfg is resolved once per invocation by PersistentPreRunE.
	cfg config.Config
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to codepad.hcl (default ./codepad.hcl if present)")
	pf.StringVar(&logLevel, "log-level", "", "Diagnostics log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Diagnostics log format: console, json")
	pf.StringVar(&executeURL, "execute-url", "", "Base URL of the execution service")
	pf.StringVarP(&downloadDir, "download-dir", "o", "", "Directory that receives exported files")
	pf.BoolVar(&logContentUpdates, "log-content-updates", false, "Log a terminal line for every content write")
	pf.BoolVar(&formatOnExport, "format-on-export", false, "Run gofumpt over .go files while exporting")
	pf.StringVar(&selector, "selector", "", "JSONPath selecting the nodes of a manifest source")
}

var rootCmd = &cobra.Command{
	Use:           "codepad",
	Short:         "codepad: an in-memory project tree with terminal log, zip export and remote execution",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, &loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return logging.Init(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

// applyFlags overlays explicitly set flags on top of file and environment
// settings.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Log.Format = logFormat
	}
	if flags.Changed("execute-url") {
		c.ExecuteURL = executeURL
	}
	if flags.Changed("download-dir") {
		c.DownloadDir = downloadDir
	}
	if flags.Changed("log-content-updates") {
		c.LogContentUpdates = logContentUpdates
	}
	if flags.Changed("format-on-export") {
		c.FormatOnExport = formatOnExport
	}
	if flags.Changed("metrics-addr") {
		c.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
}

// newWorkspace wires a workspace from c.
func newWorkspace(c config.Config) *workspace.Workspace {
	logger := logging.L()
	return workspace.New(workspace.Config{
		Executor: execclient.New(execclient.Config{
			BaseURL: c.ExecuteURL,
			Timeout: c.ExecuteTimeout,
			Logger:  logger.Named("execclient"),
		}),
		Logger: logger.Named("workspace"),
		Options: workspace.Options{
			LogContentUpdates: c.LogContentUpdates,
			FormatOnExport:    c.FormatOnExport,
			AutoOpenCreated:   c.AutoOpenCreated,
		},
	})
}

// loadSource imports a host directory or a JSON manifest into ws.
func loadSource(ws *workspace.Workspace, src, sel string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	var forest *graph.Forest
	if info.IsDir() {
		abs, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		f, report, err := ingest.ImportDir(osfs.New(abs), "/", ingest.DirOptions{
			IDs:      ws.IDs(),
			RootName: filepath.Base(abs),
			Logger:   logging.Named("ingest"),
		})
		if err != nil {
			return err
		}
		for _, s := range report.Skipped {
			logging.L().Debug("skipped", logging.String("path", s.Path), logging.String("reason", s.Reason))
		}
		logging.S().Debugf("imported %s (%d skipped)", abs, len(report.Skipped))
		forest = f
	} else {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		forest, err = ingest.LoadManifest(data, ingest.ManifestOptions{Selector: sel, IDs: ws.IDs()})
		if err != nil {
			return err
		}
	}
	return ws.Load(forest, filepath.Base(src))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
