package memory

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/procstate/internal/logger"
	"github.com/joshuapare/procstate/mem/archive"
	"github.com/joshuapare/procstate/mem/arena"
	"github.com/joshuapare/procstate/mem/intercept"
	"github.com/joshuapare/procstate/mem/snapshot"
)

// Name identifies the component.
const Name = "memory"

// Component is the surface a state save/restore host drives.
type Component interface {
	Name() string
	Hooks() intercept.Table
	Initialize() error
	Serialize(ar archive.Archive) error
	HandleMessage(msg Message) bool
}

var _ Component = (*Module)(nil)

// Module owns one arena and the shim that feeds it.
type Module struct {
	mu   sync.Mutex // serializes initialization and size changes
	opts options
	log  *slog.Logger

	arena atomic.Pointer[arena.Arena]
	shim  *intercept.Shim
}

// New returns an uninitialized module.
func New(opts ...Option) *Module {
	m := &Module{opts: options{size: arena.DefaultSize, scope: snapshot.MainModule}}
	for _, opt := range opts {
		opt(&m.opts)
	}
	m.log = logger.Or(m.opts.log).With("component", Name)
	m.shim = intercept.New(lazyHeap{m}, m.log)
	return m
}

// Name returns "memory".
func (m *Module) Name() string { return Name }

// Hooks returns the interception table.
func (m *Module) Hooks() intercept.Table { return m.shim.Table() }

// Shim returns the interception shim.
func (m *Module) Shim() *intercept.Shim { return m.shim }

// Install hands the hooks to inst and records the originals.
func (m *Module) Install(inst intercept.Installer) error { return m.shim.Install(inst) }

// Arena returns the arena, or nil before initialization.
func (m *Module) Arena() *arena.Arena { return m.arena.Load() }

// Initialize creates the arena. Calls after the first success do nothing;
// a failed call may be retried.
func (m *Module) Initialize() error {
	_, err := m.ensure()
	return err
}

func (m *Module) ensure() (*arena.Arena, error) {
	if a := m.arena.Load(); a != nil {
		return a, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.arena.Load(); a != nil {
		return a, nil
	}

	a, err := arena.New(arena.Options{
		Size:     m.opts.size,
		MinSize:  m.opts.minSize,
		Reserver: m.opts.reserver,
		Logger:   m.log,
	})
	if err != nil {
		m.log.Error("arena initialization failed", "size", m.opts.size, "err", err)
		return nil, fmt.Errorf("memory: initialize: %w", err)
	}
	m.arena.Store(a)
	m.log.Info("initialized", "requested", FormatSize(m.opts.size), "capacity", FormatSize(a.Capacity()))
	return a, nil
}

// Serialize saves or restores the arena and the scoped module pages,
// initializing the arena first if needed.
func (m *Module) Serialize(ar archive.Archive) error {
	_, err := m.Snapshot(ar)
	return err
}

// Snapshot is Serialize with the engine's report.
func (m *Module) Snapshot(ar archive.Archive) (snapshot.Report, error) {
	a, err := m.ensure()
	if err != nil {
		return snapshot.Report{}, err
	}
	m.mu.Lock()
	scope := m.opts.scope
	m.mu.Unlock()
	return snapshot.New(a, snapshot.Options{Scope: scope, Logger: m.log}).Serialize(ar)
}

// HandleMessage applies a configuration command and reports whether it was
// recognized. Unknown commands are ignored.
func (m *Module) HandleMessage(msg Message) bool {
	switch msg.Command {
	case CmdSetMemorySize:
		n, ok := msg.Value.Size()
		if !ok || n == 0 {
			m.log.Warn("ignoring invalid memory size", "value", msg.Value)
			return true
		}
		m.mu.Lock()
		m.opts.size = n
		m.mu.Unlock()
		if m.arena.Load() != nil {
			m.log.Info("memory size recorded; arena already initialized", "size", FormatSize(n))
		}
		return true
	}
	return false
}

// lazyHeap initializes the module on the first intercepted heap call.
type lazyHeap struct{ m *Module }

func (h lazyHeap) Allocate(size uintptr) uintptr {
	a, err := h.m.ensure()
	if err != nil {
		return 0
	}
	return a.Allocate(size)
}

func (h lazyHeap) Reallocate(ptr, size uintptr) uintptr {
	a, err := h.m.ensure()
	if err != nil {
		return 0
	}
	return a.Reallocate(ptr, size)
}

func (h lazyHeap) Release(ptr uintptr) bool {
	a, err := h.m.ensure()
	if err != nil {
		return false
	}
	return a.Release(ptr)
}

func (h lazyHeap) SizeOf(ptr uintptr) (uintptr, bool) {
	a, err := h.m.ensure()
	if err != nil {
		return 0, false
	}
	return a.SizeOf(ptr)
}

func (h lazyHeap) Validate(ptr uintptr) bool {
	a, err := h.m.ensure()
	if err != nil {
		return false
	}
	return a.Validate(ptr)
}

func (h lazyHeap) Check() error {
	a, err := h.m.ensure()
	if err != nil {
		return err
	}
	return a.Check()
}
