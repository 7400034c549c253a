package memory

import (
	"log/slog"
	"os"

	"github.com/joshuapare/procstate/mem/arena"
	"github.com/joshuapare/procstate/mem/snapshot"
)

// EnvMemorySize overrides the default arena size when set.
const EnvMemorySize = "PROCSTATE_MEMORY_SIZE"

type options struct {
	size     uint64
	minSize  uint64
	scope    snapshot.Scope
	log      *slog.Logger
	reserver arena.Reserver
}

// Option configures a Module.
type Option func(*options)

// WithMemorySize sets the requested arena size.
func WithMemorySize(n uint64) Option { return func(o *options) { o.size = n } }

// WithMinMemorySize sets the smallest arena size accepted after halving.
func WithMinMemorySize(n uint64) Option { return func(o *options) { o.minSize = n } }

// WithScope selects the modules captured by Serialize.
func WithScope(s snapshot.Scope) Option { return func(o *options) { o.scope = s } }

// WithLogger sets the logger for the module and everything it owns.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithReserver replaces the source of arena memory.
func WithReserver(r arena.Reserver) Option { return func(o *options) { o.reserver = r } }

// OptionsFromEnv returns options derived from the environment. Invalid values
// are ignored.
func OptionsFromEnv() []Option {
	var opts []Option
	if v, ok := os.LookupEnv(EnvMemorySize); ok {
		if n, err := ParseSize(v); err == nil {
			opts = append(opts, WithMemorySize(n))
		}
	}
	return opts
}
