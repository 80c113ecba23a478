// Package workspace is the per-session store: it owns the current forest,
// the active document and the terminal log, and turns every user action
// into a new forest snapshot plus one log line.
package workspace

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentic-research/codepad/internal/active"
	"github.com/agentic-research/codepad/internal/eventlog"
	"github.com/agentic-research/codepad/internal/execclient"
	"github.com/agentic-research/codepad/internal/export"
	"github.com/agentic-research/codepad/internal/graph"
	"github.com/agentic-research/codepad/internal/ident"
	"github.com/agentic-research/codepad/internal/metrics"
	"github.com/agentic-research/codepad/internal/source"
)

var (
	ErrNoActiveFile = errors.New("no active file")
	ErrNoExecutor   = errors.New("no execute service configured")
)

// Options toggles behaviour that differs between frontends.
type Options struct {
	// LogContentUpdates appends "Updated name.ext" on every content write.
	// Editors write on each keystroke, so it is off by default.
	LogContentUpdates bool
	// FormatOnExport runs gofumpt over .go files as they are archived.
	FormatOnExport bool
	// AutoOpenCreated makes a newly created file the active document.
	AutoOpenCreated bool
}

// DefaultOptions matches the editor frontend.
func DefaultOptions() Options {
	return Options{AutoOpenCreated: true}
}

// Config carries the injected collaborators. Zero fields get defaults.
type Config struct {
	IDs      ident.Generator
	Clock    func() time.Time
	Log      *eventlog.Log
	Exporter *export.Exporter
	Executor execclient.Executor
	Logger   *zap.Logger
	Options  Options
}

// Snapshot is a consistent view of the session after a change.
type Snapshot struct {
	Forest   *graph.Forest
	ActiveID string
	LogLen   int
}

// Workspace serializes all mutations. Reads of the forest are lock-free
// for callers because published forests are immutable.
type Workspace struct {
	mu       sync.Mutex
	forest   *graph.Forest
	tracker  *active.Tracker
	log      *eventlog.Log
	ids      ident.Generator
	clock    func() time.Time
	exporter *export.Exporter
	exec     execclient.Executor
	logger   *zap.Logger
	opts     Options

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
}

// New returns an empty workspace.
func New(cfg Config) *Workspace {
	if cfg.IDs == nil {
		cfg.IDs = ident.NewUUIDGenerator()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Log == nil {
		cfg.Log = eventlog.New(eventlog.WithMirror(cfg.Logger.Named("terminal")))
	}
	if cfg.Exporter == nil {
		opts := []export.Option{export.WithLogger(cfg.Logger.Named("export")), export.WithClock(cfg.Clock)}
		if cfg.Options.FormatOnExport {
			opts = append(opts, export.WithContentHook(FormatHook))
		}
		cfg.Exporter = export.New(opts...)
	}
	return &Workspace{
		forest:    graph.NewForest(),
		tracker:   active.New(),
		log:       cfg.Log,
		ids:       cfg.IDs,
		clock:     cfg.Clock,
		exporter:  cfg.Exporter,
		exec:      cfg.Executor,
		logger:    cfg.Logger,
		opts:      cfg.Options,
		observers: make(map[int]func(Snapshot)),
	}
}

// FormatHook is the export content hook installed by FormatOnExport.
func FormatHook(n *graph.Node, path string) ([]byte, error) {
	data, err := export.RawContent(n, path)
	if err != nil {
		return nil, err
	}
	return source.FormatOrKeep(data, path), nil
}

// Forest returns the current snapshot.
func (w *Workspace) Forest() *graph.Forest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.forest
}

// Log returns the terminal log.
func (w *Workspace) Log() *eventlog.Log {
	return w.log
}

// Active returns a copy of the open document.
func (w *Workspace) Active() (*graph.Node, bool) {
	return w.tracker.Current()
}

// Options returns the behaviour switches in effect.
func (w *Workspace) Options() Options {
	return w.opts
}

// IDs returns the generator new nodes draw from. Importers use it so that
// loaded trees and later creations never collide.
func (w *Workspace) IDs() ident.Generator {
	return w.ids
}

// Snapshot returns the current forest, active id and log length.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() Snapshot {
	return Snapshot{Forest: w.forest, ActiveID: w.tracker.ID(), LogLen: w.log.Len()}
}

// Subscribe registers fn to run after every change, outside the store
// lock. The returned func unregisters it.
func (w *Workspace) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	w.obsMu.Lock()
	id := w.nextObs
	w.nextObs++
	w.observers[id] = fn
	w.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.obsMu.Lock()
			delete(w.observers, id)
			w.obsMu.Unlock()
		})
	}
}

func (w *Workspace) notify() {
	snap := w.Snapshot()
	w.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(w.observers))
	for _, fn := range w.observers {
		fns = append(fns, fn)
	}
	w.obsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// publish installs next as the current forest. Callers hold w.mu.
func (w *Workspace) publish(next *graph.Forest) {
	w.forest = next
	metrics.SetTreeNodes(next.Len())
}

// do runs fn under the store lock. fn returns the log line to append,
// for success and failure alike, so every action leaves exactly one line.
func (w *Workspace) do(op string, fn func() (string, error)) error {
	w.mu.Lock()
	line, err := fn()
	if line != "" {
		w.log.Append(line)
	}
	w.mu.Unlock()

	metrics.RecordOperation(op, err)
	if err != nil {
		w.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
	}
	w.notify()
	return err
}

// ClearLog replaces the terminal with the banner.
func (w *Workspace) ClearLog() {
	w.mu.Lock()
	w.log.Clear()
	w.mu.Unlock()
	metrics.RecordOperation("clear_log", nil)
	w.notify()
}

// Load replaces the whole forest, as when importing a manifest or a host
// directory. The active document is closed if it is not in f.
func (w *Workspace) Load(f *graph.Forest, origin string) error {
	if f == nil {
		f = graph.NewForest()
	}
	return w.do("load", func() (string, error) {
		if id := w.tracker.ID(); id != "" {
			if n, err := f.Find(id); err != nil {
				w.tracker.Close()
			} else {
				w.tracker.NodeUpdated(n)
			}
		}
		w.publish(f)
		files, folders := count(f)
		return fmt.Sprintf("Loaded %s: %d file(s), %d folder(s)", origin, files, folders), nil
	})
}

func count(f *graph.Forest) (files, folders int) {
	_ = f.Walk(func(n *graph.Node, _ int) error {
		if n.IsFolder() {
			folders++
		} else {
			files++
		}
		return nil
	})
	return files, folders
}

// describe reduces err to the sentinel a user can act on.
func describe(err error) string {
	for _, s := range []error{
		graph.ErrNotFound, graph.ErrParentNotFound, graph.ErrInvalidParent,
		graph.ErrNotAFolder, graph.ErrNotAFile, graph.ErrDuplicateID,
		graph.ErrHasChildren, graph.ErrTooDeep, graph.ErrInvalidName,
		export.ErrEmptyContent, ErrNoActiveFile, ErrNoExecutor,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
