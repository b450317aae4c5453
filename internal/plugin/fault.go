package plugin

import (
	"fmt"
	"runtime/debug"
)

// Fault wraps an error or panic raised by a feedback hook.
type Fault struct {
	Hook  string
	Err   error
	Stack []byte // set when the hook panicked
}

func (f *Fault) Error() string {
	return fmt.Sprintf("feedback hook %s: %v", f.Hook, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Panicked reports whether the fault came from a recovered panic.
func (f *Fault) Panicked() bool { return len(f.Stack) > 0 }

// Call runs fn as the named hook, converting returned errors and panics into
// a *Fault. It never panics itself.
func Call(hook string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Hook: hook, Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
		}
	}()
	if e := fn(); e != nil {
		return &Fault{Hook: hook, Err: e}
	}
	return nil
}
