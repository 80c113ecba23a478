// Package index keeps a searchable view of a forest snapshot: identifier
// references and name/extension lookups. It lives in an in-memory SQLite
// database and is rebuilt from scratch, never persisted.
package index

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/codepad/internal/graph"
)

const schema = `
	CREATE TABLE nodes (
		slot   INTEGER PRIMARY KEY,
		id     TEXT UNIQUE NOT NULL,
		name   TEXT NOT NULL,
		ext    TEXT NOT NULL,
		path   TEXT NOT NULL,
		is_dir INTEGER NOT NULL
	);
	CREATE INDEX nodes_ext ON nodes(ext);
	CREATE TABLE node_refs (
		token  TEXT PRIMARY KEY,
		bitmap BLOB NOT NULL
	);
`

// MinTokenLen drops one-letter identifiers (loop counters and the like).
const MinTokenLen = 2

// Hit is one indexed node.
type Hit struct {
	ID     string
	Path   string
	Folder bool
}

// Index is safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *zap.Logger
	nodes  int
	tokens int

	id       string
	postings atomic.Pointer[map[string]*roaring.Bitmap]
}

// Open creates an empty index.
func Open(logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mod, err := registerModule()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	// :memory: is per connection; one connection keeps one database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index tables: %w", err)
	}
	x := &Index{db: db, logger: logger}
	x.id = mod.attach(x)
	if _, err := db.Exec("CREATE VIRTUAL TABLE refs USING codepad_refs(" + x.id + ")"); err != nil {
		mod.detach(x.id)
		_ = db.Close()
		return nil, fmt.Errorf("create refs table: %w", err)
	}
	return x, nil
}

// Close releases the database.
func (x *Index) Close() error {
	if mod, err := registerModule(); err == nil {
		mod.detach(x.id)
	}
	return x.db.Close()
}

// Stats reports the size of the last build.
func (x *Index) Stats() (nodes, tokens int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.nodes, x.tokens
}

// Rebuild replaces the index contents with f. Slots follow pre-order, so
// every query returns hits in display order.
func (x *Index) Rebuild(ctx context.Context, f *graph.Forest) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	refs := make(map[string]*roaring.Bitmap)
	type row struct {
		slot             uint32
		id, name, ext, p string
		dir              bool
	}
	var rows []row
	var slot uint32

	err := f.Walk(func(n *graph.Node, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows = append(rows, row{slot, n.ID, n.Name, n.Extension, f.Path(n.ID), n.IsFolder()})
		if !n.IsFolder() {
			for _, tok := range Tokens(n.Data) {
				bm, ok := refs[tok]
				if !ok {
					bm = roaring.New()
					refs[tok] = bm
				}
				bm.Add(slot)
			}
		}
		slot++
		return nil
	})
	if err != nil {
		return err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes; DELETE FROM node_refs;"); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, "INSERT INTO nodes (slot, id, name, ext, path, is_dir) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare nodes insert: %w", err)
	}
	defer func() { _ = nodeStmt.Close() }()
	for _, r := range rows {
		if _, err := nodeStmt.ExecContext(ctx, r.slot, r.id, r.name, r.ext, r.p, boolInt(r.dir)); err != nil {
			return fmt.Errorf("insert node %s: %w", r.id, err)
		}
	}

	refStmt, err := tx.PrepareContext(ctx, "INSERT INTO node_refs (token, bitmap) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare node_refs insert: %w", err)
	}
	defer func() { _ = refStmt.Close() }()

	var buf bytes.Buffer
	for token, bm := range refs {
		buf.Reset()
		bm.RunOptimize()
		if _, err := bm.WriteTo(&buf); err != nil {
			return fmt.Errorf("serialize bitmap for %s: %w", token, err)
		}
		if _, err := refStmt.ExecContext(ctx, token, buf.Bytes()); err != nil {
			return fmt.Errorf("insert ref %s: %w", token, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	x.postings.Store(&refs)
	x.nodes, x.tokens = len(rows), len(refs)
	x.logger.Debug("index rebuilt", zap.Int("nodes", x.nodes), zap.Int("tokens", x.tokens))
	return nil
}

// Refs returns the files whose content mentions token.
func (x *Index) Refs(ctx context.Context, token string) ([]Hit, error) {
	return x.RefsAll(ctx, token)
}

// RefsAll returns the files mentioning every one of tokens.
func (x *Index) RefsAll(ctx context.Context, tokens ...string) ([]Hit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var acc *roaring.Bitmap
	for _, tok := range tokens {
		bm, err := x.bitmap(ctx, tok)
		if err != nil {
			return nil, err
		}
		if bm == nil {
			return nil, nil
		}
		if acc == nil {
			acc = bm
		} else {
			acc.And(bm)
		}
		if acc.IsEmpty() {
			return nil, nil
		}
	}
	return x.slots(ctx, acc.ToArray())
}

// RefsMatching returns the files mentioning any token that matches glob
// (* and ?). ASCII letters match case-insensitively.
func (x *Index) RefsMatching(ctx context.Context, glob string) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.query(ctx, `
		SELECT id, path, is_dir FROM nodes
		WHERE slot IN (SELECT slot FROM refs WHERE token LIKE ? ESCAPE '\')
		ORDER BY slot`, globToLike(glob))
}

// ByExtension returns files with extension ext (without the dot).
func (x *Index) ByExtension(ctx context.Context, ext string) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.query(ctx, "SELECT id, path, is_dir FROM nodes WHERE is_dir = 0 AND ext = ? ORDER BY slot", strings.TrimPrefix(ext, "."))
}

// ByName matches display names (name.ext) against a glob using * and ?.
func (x *Index) ByName(ctx context.Context, glob string) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.query(ctx, `
		SELECT id, path, is_dir FROM nodes
		WHERE (CASE WHEN ext = '' OR is_dir = 1 THEN name ELSE name || '.' || ext END) LIKE ? ESCAPE '\'
		ORDER BY slot`, globToLike(glob))
}

func (x *Index) bitmap(ctx context.Context, token string) (*roaring.Bitmap, error) {
	var blob []byte
	err := x.db.QueryRowContext(ctx, "SELECT bitmap FROM node_refs WHERE token = ?", token).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("unmarshal bitmap: %w", err)
	}
	return bm, nil
}

func (x *Index) slots(ctx context.Context, slots []uint32) ([]Hit, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	args := make([]any, len(slots))
	placeholders := make([]string, len(slots))
	for i, s := range slots {
		args[i] = s
		placeholders[i] = "?"
	}
	q := fmt.Sprintf("SELECT id, path, is_dir FROM nodes WHERE slot IN (%s) ORDER BY slot", strings.Join(placeholders, ","))
	return x.query(ctx, q, args...)
}

func (x *Index) query(ctx context.Context, q string, args ...any) ([]Hit, error) {
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Path, &h.Folder); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func globToLike(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
