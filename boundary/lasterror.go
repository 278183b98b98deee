package boundary

import (
	"runtime"
	"sync"
)

// lastError holds the per-goroutine diagnostic string. The native contract
// this layer reproduces keeps last-error state in thread-local storage; the
// Go analogue of an execution thread is the goroutine, so the state is keyed
// by goroutine ID. A goroutine that exits leaves at most one string behind;
// Service.Close drops them all.
type lastError struct {
	m sync.Map // goroutine id -> string
}

// record overwrites the calling goroutine's diagnostic. err == nil records
// the empty string, so a successful call never leaves a stale failure
// message looking current.
func (l *lastError) record(err error) {
	if err == nil {
		l.m.Store(gid(), "")
		return
	}
	l.m.Store(gid(), err.Error())
}

// message returns the calling goroutine's diagnostic, non-destructively.
// A goroutine that has made no boundary call yet reads the empty string.
func (l *lastError) message() string {
	v, ok := l.m.Load(gid())
	if !ok {
		return ""
	}
	return v.(string)
}

// clear drops all per-goroutine state.
func (l *lastError) clear() {
	l.m.Range(func(k, _ any) bool {
		l.m.Delete(k)
		return true
	})
}

// gid returns the calling goroutine's ID, parsed from the runtime.Stack
// header ("goroutine 123 [running]:"). This is the standard shim for
// thread-local state in Go ports of C APIs; the runtime offers no direct
// accessor on purpose.
func gid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	const prefix = len("goroutine ")
	var id uint64
	for i := prefix; i < n; i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
