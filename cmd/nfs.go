package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/codepad/internal/logging"
	"github.com/agentic-research/codepad/internal/metrics"
	"github.com/agentic-research/codepad/internal/nfsmount"
)

var (
	nfsAddr     string
	nfsMount    string
	nfsWritable bool
)

func init() {
	nfsCmd.Flags().StringVar(&nfsAddr, "addr", "127.0.0.1:0", "NFS listen address")
	nfsCmd.Flags().StringVar(&nfsMount, "mount", "", "Also mount the export at this directory (needs sudo)")
	nfsCmd.Flags().BoolVarP(&nfsWritable, "writable", "w", false, "Accept writes; they are applied to the tree and logged")
	nfsCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.AddCommand(nfsCmd)
}

var nfsCmd = &cobra.Command{
	Use:   "nfs [source]",
	Short: "Serve the project tree over NFSv3",
	Long: `Serves the tree over NFSv3 until interrupted. Paths are display paths;
the root also holds _terminal.log, a read-only rendering of the terminal.
With --writable, saving a file updates the tree, and creating, renaming
or deleting entries goes through the same operations as the shell.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := newWorkspace(cfg)
		if len(args) == 1 {
			if err := loadSource(ws, args[0], selector); err != nil {
				return err
			}
		}
		logger := logging.Named("nfs")

		opts := []nfsmount.Option{nfsmount.WithLogger(logger)}
		if nfsWritable {
			opts = append(opts, nfsmount.Writable())
		}
		srv, err := nfsmount.NewServer(nfsmount.New(ws, opts...), nfsAddr, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "NFS server on port %d\n", srv.Port())

		if cfg.MetricsAddr != "" {
			stopMetrics := serveMetrics(cfg.MetricsAddr, logger)
			defer stopMetrics()
		}

		if nfsMount != "" {
			if err := nfsmount.Mount(srv.Port(), nfsMount, nfsWritable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mounted at %s\n", nfsMount)
			defer func() {
				if err := nfsmount.Unmount(nfsMount); err != nil {
					logger.Warn("unmount failed", logging.Err(err))
				}
			}()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		select {
		case <-ctx.Done():
			return nil
		case err := <-srv.Done():
			return err
		}
	},
}

// serveMetrics exposes /metrics on addr and returns a shutdown func.
func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logging.Err(err))
		}
	}()
	logger.Info("metrics listening", logging.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}
