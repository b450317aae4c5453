package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrModuleNotFound is returned when a reference matches no built-in module
// and no hooks file.
var ErrModuleNotFound = errors.New("module not found")

// Module maps hook names to candidate callables. Values that are not
// callable with one of the accepted signatures are reported and skipped.
type Module map[string]any

// Loader resolves module references into hook sets.
type Loader struct {
	mu      sync.RWMutex
	modules map[string]func() Module
	logger  *slog.Logger
}

// NewLoader creates a loader with no built-in modules.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{modules: make(map[string]func() Module), logger: logger}
}

// Register makes a built-in module available under name.
func (l *Loader) Register(name string, build func() Module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[name] = build
}

// Load resolves ref and installs every supported hook it provides. The
// returned Set always holds the hooks that installed cleanly; the error
// joins one *InjectionError per hook that did not. An empty ref yields the
// empty Set and no error.
func (l *Loader) Load(ref string) (Set, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Set{}, nil
	}

	mod, err := l.resolve(ref)
	if err != nil {
		l.logger.Info("unable to resolve hook module, aborting injection", "module", ref, "error", err)
		return Set{}, &InjectionError{Module: ref, Err: err}
	}
	return l.install(ref, mod)
}

func (l *Loader) resolve(ref string) (Module, error) {
	l.mu.RLock()
	build, ok := l.modules[ref]
	l.mu.RUnlock()
	if ok {
		return build(), nil
	}

	info, err := os.Stat(ref)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("stat hooks file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("hooks file %s is a directory", ref)
	}
	return loadExecModule(ref)
}

func (l *Loader) install(ref string, mod Module) (Set, error) {
	funcs := make(map[Name]Func, len(Supported))
	var errs []error

	for key := range mod {
		if !Name(key).Valid() {
			l.logger.Debug("ignoring unsupported hook", "module", ref, "hook", key)
		}
	}

	for _, name := range Supported {
		v, present := mod[string(name)]
		if !present {
			l.logger.Debug("unable to inject hook", "module", ref, "hook", name, "present", false)
			continue
		}
		fn := asFunc(v)
		if fn == nil {
			l.logger.Warn("hook is not invocable", "module", ref, "hook", name, "type", fmt.Sprintf("%T", v))
			errs = append(errs, &InjectionError{Module: ref, Hook: name, Err: fmt.Errorf("not invocable (%T)", v)})
			continue
		}
		funcs[name] = fn
		l.logger.Info("successfully injected hook", "module", ref, "hook", name)
	}

	return NewSet(ref, funcs), errors.Join(errs...)
}

// asFunc adapts the accepted callable shapes to Func.
func asFunc(v any) Func {
	switch fn := v.(type) {
	case Func:
		return fn
	case func(context.Context) error:
		return fn
	case func() error:
		if fn == nil {
			return nil
		}
		return func(context.Context) error { return fn() }
	case func():
		if fn == nil {
			return nil
		}
		return func(context.Context) error { fn(); return nil }
	default:
		return nil
	}
}

// execFile is the YAML layout of a hooks file.
type execFile struct {
	Hooks map[string][]string `yaml:"hooks"`
}

// loadExecModule reads a hooks file. Each hook becomes a command run with
// FEEDBACKD_HOOK set; an empty argv is kept as a non-invocable entry.
func loadExecModule(path string) (Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hooks file: %w", err)
	}
	var f execFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse hooks file: %w", err)
	}

	mod := make(Module, len(f.Hooks))
	for name, argv := range f.Hooks {
		if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
			mod[name] = argv
			continue
		}
		mod[name] = execHook(name, argv)
	}
	return mod, nil
}

func execHook(name string, argv []string) Func {
	args := append([]string(nil), argv...)
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Env = append(os.Environ(), "FEEDBACKD_HOOK="+name)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("run %s: %w (output: %s)", args[0], err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}
