package index

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
	"modernc.org/sqlite/vtab"
)

// refsModule exposes the in-memory postings of each open Index as the
// virtual table "refs(token, slot)", one row per (token, node) pair. It
// never queries the database it is attached to, so a scan may run while
// the single index connection is busy with the outer statement.
type refsModule struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

var (
	moduleOnce sync.Once
	module     *refsModule
	moduleErr  error
	indexSeq   atomic.Uint64
)

func registerModule() (*refsModule, error) {
	moduleOnce.Do(func() {
		module = &refsModule{indexes: make(map[string]*Index)}
		if err := vtab.RegisterModule(nil, "codepad_refs", module); err != nil {
			moduleErr = fmt.Errorf("register codepad_refs: %w", err)
			module = nil
		}
	})
	return module, moduleErr
}

func (m *refsModule) attach(x *Index) string {
	id := fmt.Sprintf("idx%d", indexSeq.Add(1))
	m.mu.Lock()
	m.indexes[id] = x
	m.mu.Unlock()
	return id
}

func (m *refsModule) detach(id string) {
	m.mu.Lock()
	delete(m.indexes, id)
	m.mu.Unlock()
}

// Create handles CREATE VIRTUAL TABLE ... USING codepad_refs(id). args
// holds module, database and table names ahead of the module arguments.
func (m *refsModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("codepad_refs: missing index id (expected USING codepad_refs(id))")
	}
	id := args[3]

	m.mu.RLock()
	x, ok := m.indexes[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codepad_refs: unknown index %q", id)
	}
	if err := ctx.Declare("CREATE TABLE x(token TEXT, slot INTEGER)"); err != nil {
		return nil, err
	}
	return &refsTable{index: x}, nil
}

func (m *refsModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

type refsTable struct {
	index *Index
}

// BestIndex takes over token equality. Any other constraint (LIKE, GLOB)
// is left for SQLite to check against a full scan.
func (t *refsTable) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Column != 0 || c.Op != vtab.OpEQ {
			continue
		}
		c.ArgIndex = 0
		c.Omit = true
		info.IdxNum = 1
		info.EstimatedCost = 1
		info.EstimatedRows = 10
		return nil
	}
	info.IdxNum = 0
	info.EstimatedCost = 1e6
	info.EstimatedRows = 1e6
	return nil
}

func (t *refsTable) Open() (vtab.Cursor, error) {
	return &refsCursor{table: t}, nil
}

func (t *refsTable) Disconnect() error { return nil }
func (t *refsTable) Destroy() error    { return nil }

type refsRow struct {
	token string
	slot  uint32
}

type refsCursor struct {
	table *refsTable
	rows  []refsRow
	pos   int
}

func (c *refsCursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = c.rows[:0]
	c.pos = 0

	post := c.table.index.postings.Load()
	if post == nil {
		return nil
	}
	if idxNum == 1 {
		token, ok := vals[0].(string)
		if !ok {
			return nil
		}
		c.expand(token, (*post)[token])
		return nil
	}

	tokens := make([]string, 0, len(*post))
	for tok := range *post {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	for _, tok := range tokens {
		c.expand(tok, (*post)[tok])
	}
	return nil
}

func (c *refsCursor) expand(token string, bm *roaring.Bitmap) {
	if bm == nil {
		return
	}
	it := bm.Iterator()
	for it.HasNext() {
		c.rows = append(c.rows, refsRow{token: token, slot: it.Next()})
	}
}

func (c *refsCursor) Next() error {
	c.pos++
	return nil
}

func (c *refsCursor) Eof() bool {
	return c.pos >= len(c.rows)
}

func (c *refsCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	switch col {
	case 0:
		return c.rows[c.pos].token, nil
	case 1:
		return int64(c.rows[c.pos].slot), nil
	default:
		return nil, nil
	}
}

func (c *refsCursor) Rowid() (int64, error) {
	return int64(c.pos), nil
}

func (c *refsCursor) Close() error {
	c.rows = nil
	return nil
}
