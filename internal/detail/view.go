package detail

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"ShareDesk/internal/model"
)

// DefaultRefreshInterval is how often an open view refetches its company.
const DefaultRefreshInterval = 60 * time.Second

// ErrClosed is returned when retargeting a closed view.
var ErrClosed = errors.New("detail view closed")

// Ticker runs fn every interval until the returned cancel func is called.
type Ticker interface {
	Every(interval time.Duration, fn func()) (cancel func(), err error)
}

// State is what a detail view renders. Err and Record may both be set, in
// which case Record is the last good copy.
type State struct {
	Name      string              `json:"name"`
	Loading   bool                `json:"loading"`
	Record    *model.DetailRecord `json:"record,omitempty"`
	Origin    Origin              `json:"origin,omitempty"`
	Err       error               `json:"-"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// View keeps one company loaded for as long as it is open. It loads on open
// and on every tick; switching company or closing the view stops the
// refresh, and results that arrive afterwards are dropped.
type View struct {
	fetcher  *Fetcher
	ticker   Ticker
	interval time.Duration
	onChange func(State)
	parent   context.Context

	emitMu sync.Mutex
	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc
	stop   func()
	closed bool
}

// Open creates a view on name and performs the first load before returning.
// onChange is called with every new state, never concurrently.
func (f *Fetcher) Open(ctx context.Context, name string, t Ticker, interval time.Duration, onChange func(State)) (*View, error) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if onChange == nil {
		onChange = func(State) {}
	}
	v := &View{
		fetcher:  f,
		ticker:   t,
		interval: interval,
		onChange: onChange,
		parent:   ctx,
	}
	if err := v.Retarget(name); err != nil {
		return nil, err
	}
	return v, nil
}

// Retarget points the view at another company. The previous refresh is
// cancelled before the new one starts.
func (v *View) Retarget(rawName string) error {
	name := DecodeName(rawName)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.stopLocked()
	ctx, cancel := context.WithCancel(v.parent)
	v.gen++
	gen := v.gen
	v.cancel = cancel
	v.state = State{Name: name, Loading: true}
	loading := v.state
	v.mu.Unlock()

	v.emit(gen, loading)

	stop, err := v.ticker.Every(v.interval, func() { v.load(ctx, gen, name) })
	if err != nil {
		cancel()
		return err
	}
	v.mu.Lock()
	if gen != v.gen || v.closed {
		v.mu.Unlock()
		stop()
		return nil
	}
	v.stop = stop
	v.mu.Unlock()

	v.load(ctx, gen, name)
	return nil
}

// State returns the current state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Close stops refreshing. It is safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.stopLocked()
}

func (v *View) stopLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if v.stop != nil {
		v.stop()
		v.stop = nil
	}
}

func (v *View) load(ctx context.Context, gen uint64, name string) {
	if ctx.Err() != nil {
		return
	}
	res, err := v.fetcher.Get(ctx, name)

	v.mu.Lock()
	if ctx.Err() != nil || gen != v.gen || v.closed {
		v.mu.Unlock()
		return
	}
	next := State{Name: name, Record: res.Record, Origin: res.Origin, Err: err, UpdatedAt: time.Now()}
	if next.Record == nil {
		// Keep showing what we had for this company.
		next.Record = v.state.Record
		if next.Record != nil {
			next.Origin = OriginStale
		}
	}
	v.state = next
	v.mu.Unlock()

	if err != nil {
		log.Printf("[WARN] detail view %q: %v", name, err)
	}
	v.emit(gen, next)
}

func (v *View) emit(gen uint64, s State) {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()
	v.mu.Lock()
	current := gen == v.gen && !v.closed
	v.mu.Unlock()
	if current {
		v.onChange(s)
	}
}
