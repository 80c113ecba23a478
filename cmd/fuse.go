package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	codepadfs "github.com/agentic-research/codepad/internal/fs"
	"github.com/agentic-research/codepad/internal/logging"
)

func init() {
	rootCmd.AddCommand(fuseCmd)
}

var fuseCmd = &cobra.Command{
	Use:   "fuse <source> <mountpoint>",
	Short: "Mount a read-only view of the project tree with FUSE",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := newWorkspace(cfg)
		if err := loadSource(ws, args[0], selector); err != nil {
			return err
		}
		cfs := codepadfs.NewCodepadFS(ws, logging.Named("fuse"))

		fmt.Fprintf(cmd.OutOrStdout(), "Mounting at %s (read-only)...\n", args[1])
		// uid/gid make the mount ours under fuse-t, which serves it over NFS.
		opts := []string{
			"-o", fmt.Sprintf("uid=%d", os.Getuid()),
			"-o", fmt.Sprintf("gid=%d", os.Getgid()),
		}
		if !codepadfs.Mount(cfs, args[1], opts) {
			return fmt.Errorf("mount %s failed", args[1])
		}
		return nil
	},
}
