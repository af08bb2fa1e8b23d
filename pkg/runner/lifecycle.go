package runner

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ServeFunc is the main loop; it returns when the input ends or ctx is cancelled.
type ServeFunc func(ctx context.Context) error

var ErrDrainTimeout = errors.New("drain timeout")

type LifecycleRunner struct {
	state     int32
	ctx       context.Context
	cancel    context.CancelFunc
	onceStop  sync.Once
	serve     ServeFunc
	hooks     Hooks
	drainer   Drainer
	stopErr   error
	timeout   time.Duration
	bannerOut io.Writer
}

func NewLifecycleRunner(serve ServeFunc, drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LifecycleRunner{
		state:   int32(StateNew),
		ctx:     ctx,
		cancel:  cancel,
		serve:   serve,
		hooks:   hooks,
		drainer: drainer,
		timeout: timeout,
	}
}

// WithBanner prints the banner to w when Run starts.
func (r *LifecycleRunner) WithBanner(w io.Writer) *LifecycleRunner {
	r.bannerOut = w
	return r
}

// Run serves until the serve func returns or ctx is cancelled, then drains.
// Cancellation is a clean shutdown, not an error.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return errors.New("runner: already started")
	}
	PrintBanner(r.bannerOut)
	if ctx != nil {
		r.ctx, r.cancel = context.WithCancel(ctx)
	}
	defer r.cancel()
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.setState(StateRunning)

	var serveErr error
	if r.serve != nil {
		serveErr = r.serve(r.ctx)
	} else {
		<-r.ctx.Done()
	}
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}
	return errors.Join(serveErr, r.stop())
}

func (r *LifecycleRunner) Stop() error {
	r.cancel()
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		if r.drainer != nil {
			done := make(chan error, 1)
			go func() {
				done <- r.drainer.Drain()
			}()
			select {
			case err := <-done:
				r.stopErr = err
			case <-time.After(r.timeout):
				r.stopErr = ErrDrainTimeout
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.setState(StateStopped)
	})
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}
