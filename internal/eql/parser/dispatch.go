package parser

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atlekbai/entityql/internal/eql"
)

// Registry is the ordered handler list consulted by a Dispatcher. Mutations
// swap in a new slice under the write lock, so a snapshot is never modified
// once handed out.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewRegistry(hs ...Handler) *Registry {
	r := &Registry{}
	for _, h := range hs {
		r.Register(h)
	}
	return r
}

// DefaultRegistry returns a registry holding DefaultHandlers.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultHandlers()...)
}

// Register appends h, or replaces in place a handler with the same name.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]Handler, 0, len(r.handlers)+1)
	replaced := false
	for _, cur := range r.handlers {
		if cur.Name() == h.Name() {
			next = append(next, h)
			replaced = true
			continue
		}
		next = append(next, cur)
	}
	if !replaced {
		next = append(next, h)
	}
	r.handlers = next
}

// Unregister removes the handler with the given name and reports whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]Handler, 0, len(r.handlers))
	for _, cur := range r.handlers {
		if cur.Name() != name {
			next = append(next, cur)
		}
	}
	found := len(next) != len(r.handlers)
	r.handlers = next
	return found
}

// Snapshot returns the current handler list. Callers must not modify it.
func (r *Registry) Snapshot() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers
}

// Attempt describes the outcome of one handler trial.
type Attempt struct {
	Handler string
	OK      bool
}

// Dispatcher interprets a statement by trying each registered handler in
// turn until one produces an expression.
type Dispatcher struct {
	reg *Registry
	// Observe, when set, is called after every handler trial.
	Observe func(Attempt)
}

func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Dispatch parses fragment with p. Each trial starts from the same argument
// cursor. A trial that changes the stack depth or top is a programming error
// reported as eql.ErrUnbalancedStack. When every handler fails the error of
// the trial that got furthest into the fragment is returned.
func (d *Dispatcher) Dispatch(p *Parser, fragment string) (eql.Expression, error) {
	handlers := d.reg.Snapshot()
	if len(handlers) == 0 {
		return nil, p.Errorf("no statement handlers registered")
	}

	mark, depth, top := p.Cursor(), p.Depth(), p.Top()
	var best *eql.ParseError

	for _, h := range handlers {
		p.SetCursor(mark)
		c := &capture{}
		p.Push(c)
		err := p.Run(fragment, h.Start())
		if p.Top() != c {
			return nil, fmt.Errorf("%w: handler %s left %d states", eql.ErrUnbalancedStack, h.Name(), p.Depth()-depth-1)
		}
		p.Pop()
		if p.Depth() != depth || p.Top() != top {
			return nil, fmt.Errorf("%w: handler %s", eql.ErrUnbalancedStack, h.Name())
		}
		if d.Observe != nil {
			d.Observe(Attempt{Handler: h.Name(), OK: err == nil && c.expr != nil})
		}

		if err == nil {
			if c.expr == nil {
				return nil, fmt.Errorf("%w: handler %s produced no expression", eql.ErrUnbalancedStack, h.Name())
			}
			return c.expr, nil
		}
		var pe *eql.ParseError
		if !errors.As(err, &pe) {
			return nil, err
		}
		if best == nil || pe.Pos > best.Pos {
			best = pe
		}
	}

	p.SetCursor(mark)
	return nil, best
}
