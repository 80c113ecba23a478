package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/export"
	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/index"
	"github.com/agentic-research/codepad/internal/workspace"
)

// Version is reported to MCP clients.
var Version = "dev"

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp [source]",
	Short: "Serve the project tree as MCP tools over stdio",
	Long: `Runs a Model Context Protocol server on stdin/stdout. Every tool that
changes the tree answers with the terminal lines it produced. Diagnostics
go to stderr so they never corrupt the protocol stream.`,
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

		s := newMCPServer(&mcpTools{ws: ws, search: search, downloadDir: cfg.DownloadDir})
		return server.ServeStdio(s)
	},
}

// mcpTools holds the handlers; each maps one tool call onto a workspace
// operation.
type mcpTools struct {
	ws          *workspace.Workspace
	search      *searcher
	downloadDir string
}

func newMCPServer(t *mcpTools) *server.MCPServer {
	s := server.NewMCPServer("codepad", Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	pathArg := func(desc string) mcp.ToolOption {
		return mcp.WithString("path", mcp.Required(), mcp.Description(desc))
	}

	s.AddTool(mcp.NewTool("tree",
		mcp.WithDescription("Show the project tree. Folders end in /, collapsed folders are marked + and the open file *."),
	), t.tree)
	s.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder. The parent must exist; a path without / creates a root folder."),
		pathArg("Display path of the new folder, e.g. src/util"),
	), t.createFolder)
	s.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create an empty file; the text after the last dot is its extension."),
		pathArg("Display path of the new file, e.g. src/main.cpp"),
	), t.createFile)
	s.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Replace the content of an existing file."),
		pathArg("Display path of the file"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Complete new content")),
	), t.writeFile)
	s.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Return the content of a file."),
		pathArg("Display path of the file"),
	), t.readFile)
	s.AddTool(mcp.NewTool("rename",
		mcp.WithDescription("Rename a file or folder in place."),
		pathArg("Display path of the node"),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New name, with extension for files")),
	), t.rename)
	s.AddTool(mcp.NewTool("delete",
		mcp.WithDescription("Delete a file, or a folder with everything inside it."),
		pathArg("Display path of the node"),
	), t.delete)
	s.AddTool(mcp.NewTool("toggle_folder",
		mcp.WithDescription("Expand or collapse a folder."),
		pathArg("Display path of the folder"),
	), t.toggle)
	s.AddTool(mcp.NewTool("open_file",
		mcp.WithDescription("Make a file the active document (used by format, validate and execute)."),
		pathArg("Display path of the file"),
	), t.open)
	s.AddTool(mcp.NewTool("format",
		mcp.WithDescription("Format the active document with gofumpt (Go files only)."),
	), t.format)
	s.AddTool(mcp.NewTool("validate",
		mcp.WithDescription("Syntax-check and lint the active document."),
	), t.validate)
	s.AddTool(mcp.NewTool("execute",
		mcp.WithDescription("Run the active document on the execution service (py, c, cpp, java)."),
	), t.execute)
	s.AddTool(mcp.NewTool("export",
		mcp.WithDescription("Export a folder as .zip or a file as text into the download directory."),
		pathArg("Display path of the folder or file"),
	), t.export)
	s.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Find files whose content mentions every given identifier, or any identifier matching a single * / ? pattern."),
		mcp.WithString("tokens", mcp.Required(), mcp.Description("Space-separated identifiers, or one pattern")),
	), t.searchRefs)
	s.AddTool(mcp.NewTool("find",
		mcp.WithDescription("Find nodes whose name matches a glob (* and ?)."),
		mcp.WithString("glob", mcp.Required(), mcp.Description("Pattern matched against name.ext")),
	), t.find)
	s.AddTool(mcp.NewTool("terminal",
		mcp.WithDescription("Return the most recent terminal lines."),
		mcp.WithNumber("lines", mcp.Description("How many lines; 0 or absent returns all")),
	), t.terminal)

	return s
}

// since answers a mutating call with the terminal lines it appended, as an
// error result when err is set.
func (t *mcpTools) since(before int, err error) (*mcp.CallToolResult, error) {
	text := strings.Join(t.ws.Log().Since(before), "\n")
	if err != nil {
		if text == "" {
			text = err.Error()
		}
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

// node resolves the required "path" argument.
func (t *mcpTools) node(req mcp.CallToolRequest) (*graph.Node, *mcp.CallToolResult) {
	p, err := req.RequireString("path")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	n, err := lookupPath(t.ws, p)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return n, nil
}

func (t *mcpTools) tree(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	active, _ := t.ws.Active()
	renderTree(&b, t.ws.Forest(), active)
	if b.Len() == 0 {
		return mcp.NewToolResultText("(empty)"), nil
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

func (t *mcpTools) createFolder(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent, base, err := splitParent(t.ws, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	before := t.ws.Log().Len()
	_, err = t.ws.CreateFolder(parent, base)
	return t.since(before, err)
}

func (t *mcpTools) createFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent, base, err := splitParent(t.ws, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, ext := graph.SplitFileName(base)
	before := t.ws.Log().Len()
	_, err = t.ws.CreateFile(parent, name, ext)
	return t.since(before, err)
}

func (t *mcpTools) writeFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, bad := t.node(req)
	if bad != nil {
		return bad, nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	before := t.ws.Log().Len()
	if err := t.ws.UpdateFileContent(n.ID, content); err != nil {
		return t.since(before, err)
	}
	if t.ws.Log().Len() > before {
		return t.since(before, nil)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d byte(s) to %s", len(content), n.FileName())), nil
}

func (t *mcpTools) readFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, bad := t.node(req)
	if bad != nil {
		return bad, nil
	}
	if n.IsFolder() {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", n.Name, graph.ErrNotAFile)), nil
	}
	return mcp.NewToolResultText(string(n.Data)), nil
}

func (t *mcpTools) rename(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, bad := t.node(req)
	if bad != nil {
		return bad, nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, ext := newName, ""
	if !n.IsFolder() {
		name, ext = graph.SplitFileName(newName)
	}
	before := t.ws.Log().Len()
	return t.since(before, t.ws.Rename(n.ID, name, ext))
}

func (t *mcpTools) delete(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, bad := t.node(req)
	if bad != nil {
		return bad, nil
	}
	before := t.ws.Log().Len()
	return t.since(before, t.ws.Delete(n.ID))
}

func (t *mcpTools) toggle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, bad := t.node(req)
	if bad != nil {
		return bad, nil
	}
	before := t.ws.Log().Len()
	return t.since(before, t.ws.ToggleFolder(n.ID))
}

func (t *mcpTools) open(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, bad := t.node(req)
	if bad != nil {
		return bad, nil
	}
	before := t.ws.Log().Len()
	return t.since(before, t.ws.Open(n.ID))
}

func (t *mcpTools) format(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before := t.ws.Log().Len()
	return t.since(before, t.ws.FormatActive())
}

func (t *mcpTools) validate(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before := t.ws.Log().Len()
	return t.since(before, t.ws.ValidateActive(ctx))
}

func (t *mcpTools) execute(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before := t.ws.Log().Len()
	_, err := t.ws.Execute(ctx)
	return t.since(before, err)
}

func (t *mcpTools) export(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, bad := t.node(req)
	if bad != nil {
		return bad, nil
	}
	before := t.ws.Log().Len()

	var d *export.Download
	var err error
	if n.IsFolder() {
		var arc *export.Archive
		if arc, err = t.ws.ExportFolder(ctx, n.ID); err == nil {
			d = &arc.Download
		}
	} else {
		d, err = t.ws.ExportFile(n.ID)
	}
	if err != nil {
		return t.since(before, err)
	}

	dest, err := export.Deliver(d, t.downloadDir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := append(t.ws.Log().Since(before), "Saved to "+dest)
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (t *mcpTools) searchRefs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tokens, err := req.RequireString("tokens")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields := strings.Fields(tokens)
	if len(fields) == 0 {
		return mcp.NewToolResultError("tokens: at least one identifier is required"), nil
	}
	hits, err := t.search.Refs(ctx, fields...)
	return hitsResult(hits, err)
}

func (t *mcpTools) find(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	glob, err := req.RequireString("glob")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := t.search.ByName(ctx, glob)
	return hitsResult(hits, err)
}

func (t *mcpTools) terminal(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := req.GetInt("lines", 0)
	if n < 0 {
		return mcp.NewToolResultError("lines must not be negative"), nil
	}
	lines := t.ws.Log().Lines()
	if n > 0 {
		lines = t.ws.Log().Tail(n)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func hitsResult(hits []index.Hit, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	paths := make([]string, len(hits))
	for i, h := range hits {
		paths[i] = h.Path
		if h.Folder {
			paths[i] += "/"
		}
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}
