package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/export"
	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/index"
	"github.com/agentic-research/codepad/internal/logging"
	"github.com/agentic-research/codepad/internal/workspace"
)

func init() {
	rootCmd.AddCommand(shellCmd)
}

var shellCmd = &cobra.Command{
	Use:   "shell [source]",
	Short: "Interactive session over an in-memory project tree",
	Long: `Starts an interactive session. The optional source is a host directory
or a JSON manifest loaded as the initial tree. Type "help" for commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := newWorkspace(cfg)
		if len(args) == 1 {
			if err := loadSource(ws, args[0], selector); err != nil {
				return err
			}
		}
		search, err := newSearcher(ws)
		if err != nil {
			return err
		}
		defer search.Close()

		s := newSession(ws, search, cmd.InOrStdin(), cmd.OutOrStdout(), cfg.DownloadDir)
		return s.loop(cmd.Context())
	},
}

// errQuit ends the read loop.
var errQuit = errors.New("quit")

const shellHelp = `Commands (paths are slash-separated display paths, e.g. src/main.cpp):
  ls [dir]            list a folder (or the roots)
  tree                show the tree; collapsed folders hide their children
  mkdir <path>        create a folder
  touch <path>        create an empty file
  write <path>        replace a file's content; end input with a line "."
  cat <path>          print a file
  open <path> | close set or clear the active document
  mv <path> <name>    rename in place
  rm <path>           delete a file or folder
  toggle <dir>        expand or collapse a folder
  save                download the active document
  fmt | check | run   format, syntax-check or execute the active document
  export <path>       download a folder as .zip or a file as text
  grep <token>...     files mentioning every token, or one pattern like get*
  find <glob>         nodes whose name matches (* and ?)
  ext <ext>           files with the extension
  log [n] | clear     show or reset the terminal
  quit`

// session is one interactive shell over a workspace.
type session struct {
	ws          *workspace.Workspace
	search      *searcher
	in          *bufio.Scanner
	out         io.Writer
	downloadDir string
	seen        int  // terminal lines already printed
	printed     bool // the last flush printed something
}

func newSession(ws *workspace.Workspace, search *searcher, in io.Reader, out io.Writer, downloadDir string) *session {
	return &session{
		ws:          ws,
		search:      search,
		in:          bufio.NewScanner(in),
		out:         out,
		downloadDir: downloadDir,
	}
}

func (s *session) loop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.flush()
	for {
		fmt.Fprint(s.out, "codepad> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		cmdCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err := s.run(cmdCtx, s.in.Text())
		stop()
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			logging.L().Debug("shell command failed", logging.Err(err))
		}
	}
}

// run executes one command line and prints the terminal lines it produced.
// An error is printed only when the workspace did not already log it.
func (s *session) run(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	err := s.dispatch(ctx, args[0], args[1:])
	s.flush()
	if err != nil && !errors.Is(err, errQuit) && !s.printed {
		fmt.Fprintln(s.out, "error:", err)
	}
	return err
}

func (s *session) dispatch(ctx context.Context, name string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d argument(s); try help", name, n)
		}
		return nil
	}

	switch name {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return nil
	case "quit", "exit":
		return errQuit
	case "ls":
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		return s.list(dir)
	case "tree":
		s.tree()
		return nil
	case "mkdir":
		if err := need(1); err != nil {
			return err
		}
		parent, base, err := s.parent(args[0])
		if err != nil {
			return err
		}
		_, err = s.ws.CreateFolder(parent, base)
		return err
	case "touch":
		if err := need(1); err != nil {
			return err
		}
		parent, base, err := s.parent(args[0])
		if err != nil {
			return err
		}
		n, ext := graph.SplitFileName(base)
		_, err = s.ws.CreateFile(parent, n, ext)
		return err
	case "write":
		if err := need(1); err != nil {
			return err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return err
		}
		return s.ws.UpdateFileContent(n.ID, s.readBlock())
	case "cat":
		if err := need(1); err != nil {
			return err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return err
		}
		if n.IsFolder() {
			return fmt.Errorf("%s: %w", args[0], graph.ErrNotAFile)
		}
		_, _ = s.out.Write(n.Data)
		if len(n.Data) > 0 && n.Data[len(n.Data)-1] != '\n' {
			fmt.Fprintln(s.out)
		}
		return nil
	case "open":
		if err := need(1); err != nil {
			return err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return err
		}
		return s.ws.Open(n.ID)
	case "close":
		return s.ws.Close()
	case "mv":
		if err := need(2); err != nil {
			return err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return err
		}
		name, ext := args[1], ""
		if !n.IsFolder() {
			name, ext = graph.SplitFileName(args[1])
		}
		return s.ws.Rename(n.ID, name, ext)
	case "rm":
		if err := need(1); err != nil {
			return err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return err
		}
		return s.ws.Delete(n.ID)
	case "toggle":
		if err := need(1); err != nil {
			return err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return err
		}
		return s.ws.ToggleFolder(n.ID)
	case "save":
		d, err := s.ws.SaveCurrentFile()
		if err != nil {
			return err
		}
		return s.deliver(d)
	case "fmt":
		return s.ws.FormatActive()
	case "check":
		return s.ws.ValidateActive(ctx)
	case "run":
		_, err := s.ws.Execute(ctx)
		return err
	case "export":
		if err := need(1); err != nil {
			return err
		}
		return s.export(ctx, args[0])
	case "grep":
		if err := need(1); err != nil {
			return err
		}
		hits, err := s.search.Refs(ctx, args...)
		return s.hits(hits, err)
	case "find":
		if err := need(1); err != nil {
			return err
		}
		hits, err := s.search.ByName(ctx, args[0])
		return s.hits(hits, err)
	case "ext":
		if err := need(1); err != nil {
			return err
		}
		hits, err := s.search.ByExtension(ctx, args[0])
		return s.hits(hits, err)
	case "log":
		n := s.ws.Log().Len()
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return errors.New("log: n must be a non-negative number")
			}
			n = v
		}
		for _, l := range s.ws.Log().Tail(n) {
			fmt.Fprintln(s.out, l)
		}
		return nil
	case "clear":
		s.ws.ClearLog()
		s.seen = 0
		return nil
	default:
		return fmt.Errorf("unknown command %q; try help", name)
	}
}

// flush prints terminal lines appended since the last flush.
func (s *session) flush() {
	lines := s.ws.Log().Since(s.seen)
	s.printed = len(lines) > 0
	for _, l := range lines {
		fmt.Fprintln(s.out, l)
	}
	s.seen = s.ws.Log().Len()
}

func (s *session) resolve(p string) (*graph.Node, error) {
	return lookupPath(s.ws, p)
}

func (s *session) parent(p string) (string, string, error) {
	return splitParent(s.ws, p)
}

// readBlock reads lines up to a line holding a single ".".
func (s *session) readBlock() string {
	var b strings.Builder
	for s.in.Scan() {
		line := s.in.Text()
		if line == "." {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *session) list(dir string) error {
	f := s.ws.Forest()
	ids := f.Roots()
	if dir != "" {
		n, err := s.resolve(dir)
		if err != nil {
			return err
		}
		if !n.IsFolder() {
			return fmt.Errorf("%s: %w", dir, graph.ErrNotAFolder)
		}
		ids = n.Children
	}
	active, _ := s.ws.Active()
	for _, id := range ids {
		n, err := f.Find(id)
		if err != nil {
			continue
		}
		fmt.Fprintln(s.out, entryLabel(n, active))
	}
	return nil
}

func (s *session) tree() {
	active, _ := s.ws.Active()
	renderTree(s.out, s.ws.Forest(), active)
}

func (s *session) export(ctx context.Context, p string) error {
	n, err := s.resolve(p)
	if err != nil {
		return err
	}
	if !n.IsFolder() {
		d, err := s.ws.ExportFile(n.ID)
		if err != nil {
			return err
		}
		return s.deliver(d)
	}
	arc, err := s.ws.ExportFolder(ctx, n.ID)
	if err != nil {
		return err
	}
	return s.deliver(&arc.Download)
}

func (s *session) deliver(d *export.Download) error {
	dest, err := export.Deliver(d, s.downloadDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "wrote %s (%d bytes)\n", dest, len(d.Data))
	return nil
}

func (s *session) hits(hits []index.Hit, err error) error {
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(s.out, "no matches")
		return nil
	}
	for _, h := range hits {
		if h.Folder {
			fmt.Fprintln(s.out, h.Path+"/")
			continue
		}
		fmt.Fprintln(s.out, h.Path)
	}
	return nil
}
