package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/export"
	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/ingest"
	"github.com/agentic-research/codepad/internal/workspace"
)

var (
	exportPath   string
	exportUnpack string
)

func init() {
	exportCmd.Flags().StringVarP(&exportPath, "path", "p", "", "Display path of the folder or file to export (default: the first root)")
	exportCmd.Flags().StringVar(&exportUnpack, "unpack", "", "Write the folder's files into this host directory instead of a .zip")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <source>",
	Short: "Load a directory or manifest and export a folder as .zip (or a file as text)",
	Long: `Loads source (a host directory or a JSON manifest) into a fresh tree and
exports one node: folders become <name>.zip, files <name>.<ext>. The
terminal log is printed to stderr. Entries that fail to export are
reported and skipped; the command still writes the archive.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		ws := newWorkspace(cfg)
		if err := loadSource(ws, args[0], selector); err != nil {
			return err
		}
		if exportUnpack != "" {
			return unpack(cmd, ws, exportPath, exportUnpack)
		}
		d, err := exportNode(ctx, ws, exportPath)
		printLog(cmd, ws)
		if err != nil {
			return err
		}
		dest, err := export.Deliver(d, cfg.DownloadDir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dest)
		return nil
	},
}

// exportNode exports the node at p, or the first root when p is empty.
func exportNode(ctx context.Context, ws *workspace.Workspace, p string) (*export.Download, error) {
	f := ws.Forest()
	var n *graph.Node
	if p == "" {
		roots := f.Roots()
		if len(roots) == 0 {
			return nil, fmt.Errorf("export: %w: tree is empty", graph.ErrNotFound)
		}
		n, _ = f.Find(roots[0])
	} else {
		var err error
		if n, err = f.Lookup(p); err != nil {
			return nil, fmt.Errorf("export %s: %w", p, err)
		}
	}

	if !n.IsFolder() {
		return ws.ExportFile(n.ID)
	}
	arc, err := ws.ExportFolder(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	return &arc.Download, nil
}

// unpack writes the folder at p onto the host under dir.
func unpack(cmd *cobra.Command, ws *workspace.Workspace, p, dir string) error {
	f := ws.Forest()
	folderID := ""
	if p != "" {
		n, err := f.Lookup(p)
		if err != nil {
			return fmt.Errorf("unpack %s: %w", p, err)
		}
		if !n.IsFolder() {
			return fmt.Errorf("unpack %s: %w", p, graph.ErrNotAFolder)
		}
		folderID = n.ID
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	n, err := ingest.WriteDir(f, folderID, osfs.New(dir), "/")
	if err != nil {
		return fmt.Errorf("unpack into %s: %w", dir, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "unpacked %d file(s) into %s\n", n, dir)
	return nil
}

func printLog(cmd *cobra.Command, ws *workspace.Workspace) {
	for _, l := range ws.Log().Lines() {
		fmt.Fprintln(cmd.ErrOrStderr(), l)
	}
}
