package detect

import (
	"sync"

	"card-scanner/internal/monitoring"
)

// Status is the lifecycle state of a detection backend.
type Status int

const (
	StatusUnloaded Status = iota
	StatusLoading
	StatusWarming
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusLoading:
		return "loading"
	case StatusWarming:
		return "warming"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusListener is called after every lifecycle transition.
type StatusListener func(status Status, err error)

// Lifecycle tracks a backend's Status. It is safe for concurrent use.
type Lifecycle struct {
	mu        sync.RWMutex
	name      string
	status    Status
	err       error
	listeners []StatusListener
}

// NewLifecycle creates a lifecycle in the unloaded state. The name prefixes
// transition log lines.
func NewLifecycle(name string) *Lifecycle {
	return &Lifecycle{name: name}
}

// Status returns the current state.
func (l *Lifecycle) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Err returns the error that moved the lifecycle into StatusError, if any.
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Ready reports whether the backend can serve Detect calls.
func (l *Lifecycle) Ready() bool {
	return l.Status() == StatusReady
}

// OnChange registers a listener for lifecycle transitions.
func (l *Lifecycle) OnChange(fn StatusListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Set moves to status. err is recorded only for StatusError.
func (l *Lifecycle) Set(status Status, err error) {
	l.mu.Lock()
	if status != StatusError {
		err = nil
	}
	changed := l.status != status
	l.status = status
	l.err = err
	listeners := append([]StatusListener(nil), l.listeners...)
	l.mu.Unlock()

	if !changed {
		return
	}
	if err != nil {
		monitoring.Logf("%s: %s (%v)", l.name, status, err)
	} else {
		monitoring.Logf("%s: %s", l.name, status)
	}
	for _, fn := range listeners {
		fn(status, err)
	}
}
