package dom

import (
	"github.com/stache-go/stache/value"
)

// App runs a template against state S changed by messages M.
//
// Send may be called from inside the update function or from a render
// hook. Such messages are queued and handled after the current one, by
// the same drain loop, so rendering never recurses into itself.
type App[S, M any] struct {
	patcher  *Patcher
	prog     *Program
	state    S
	update   func(*S, M)
	queue    []M
	draining bool

	// OnRender runs after every render with the message that caused it.
	OnRender func(M)

	renders int
	err     error
}

// NewApp mounts prog for the initial state.
func NewApp[S, M any](prog *Program, state S, update func(*S, M)) (*App[S, M], error) {
	p, err := prog.Mount(value.FromGo(state))
	if err != nil {
		return nil, err
	}
	return &App[S, M]{patcher: p, prog: prog, state: state, update: update}, nil
}

// Send queues msg and drains the queue unless a drain is already running.
func (a *App[S, M]) Send(msg M) {
	a.queue = append(a.queue, msg)
	if a.draining {
		return
	}
	a.draining = true
	defer func() { a.draining = false }()
	for len(a.queue) > 0 {
		msg := a.queue[0]
		a.queue = a.queue[1:]
		before := value.FromGo(a.state)
		a.update(&a.state, msg)
		after := value.FromGo(a.state)
		if err := a.patcher.Update(after, a.prog.Dirty(before, after)); err != nil && a.err == nil {
			a.err = err
		}
		a.renders++
		if a.OnRender != nil {
			a.OnRender(msg)
		}
	}
}

// State returns the current state.
func (a *App[S, M]) State() S { return a.state }

// Patcher returns the patcher of the mounted tree.
func (a *App[S, M]) Patcher() *Patcher { return a.patcher }

// Renders returns the number of renders since mounting.
func (a *App[S, M]) Renders() int { return a.renders }

// Err returns the first render error.
func (a *App[S, M]) Err() error { return a.err }
