// Package channel relays agent runs to any number of subscribers.
//
// A Channel accepts RunRequests through Submit, starts one run per accepted
// request and publishes every event of that run, in order, to each
// subscriber. Only one run is active at a time; see Policy.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison/event"
)

var (
	// ErrClosed is returned by Submit after Stop.
	ErrClosed = errors.New("channel: closed")

	// ErrBusy is returned by Submit under PolicyReject while a run is active.
	ErrBusy = errors.New("channel: run in progress")

	// ErrQueueFull is returned by Submit under PolicySerialize when the
	// request queue is full.
	ErrQueueFull = errors.New("channel: request queue full")
)

// Runner starts a run and streams its events. *agent.Agent implements it.
type Runner interface {
	RunStream(ctx context.Context, prompt string) (<-chan event.Event, error)
}

// RunRequest asks the channel to run the agent on a prompt.
type RunRequest struct {
	Prompt string

	// OnStart, if set, is called on the relay goroutine just before the run
	// starts. A subscription created inside OnStart receives exactly this
	// run's events. It must not block.
	OnStart func()
}

// Policy decides what happens to a request submitted while a run is active.
type Policy int

const (
	// PolicySerialize queues requests and runs them one after another in
	// submission order.
	PolicySerialize Policy = iota

	// PolicyReject refuses requests while a run is active or queued.
	PolicyReject
)

func (p Policy) String() string {
	switch p {
	case PolicySerialize:
		return "serialize"
	case PolicyReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "serialize" or "reject". An empty string is
// PolicySerialize.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "serialize":
		return PolicySerialize, nil
	case "reject":
		return PolicyReject, nil
	default:
		return PolicySerialize, errors.New("channel: unknown policy " + s)
	}
}

// Option configures a Channel.
type Option func(*Channel)

// WithPolicy sets the concurrent-request policy.
func WithPolicy(p Policy) Option {
	return func(c *Channel) {
		c.policy = p
	}
}

// WithQueueSize sets how many requests may wait under PolicySerialize.
func WithQueueSize(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithSubscriberBuffer sets each subscription's buffer size.
func WithSubscriberBuffer(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.subBuffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}

// Channel is a fan-out adapter over a Runner.
type Channel struct {
	runner    Runner
	policy    Policy
	queueSize int
	subBuffer int
	logger    zerolog.Logger

	requests chan RunRequest
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	// stateMu guards closed and inflight.
	stateMu  sync.Mutex
	closed   bool
	inflight int

	// subMu is held for writing to change subscribers and for reading
	// during a publish.
	subMu     sync.RWMutex
	subs      map[uint64]*Subscription
	nextSubID uint64
	subsDone  bool
}

// New creates a Channel and starts its relay.
func New(runner Runner, opts ...Option) *Channel {
	c := &Channel{
		runner:    runner,
		queueSize: 16,
		subBuffer: 64,
		logger:    zerolog.Nop(),
		done:      make(chan struct{}),
		subs:      make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(c)
	}

	size := c.queueSize
	if c.policy == PolicyReject {
		size = 1
	}
	c.requests = make(chan RunRequest, size)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	go c.relay()
	return c
}

// Policy returns the channel's request policy.
func (c *Channel) Policy() Policy { return c.policy }

// Submit enqueues a run request.
func (c *Channel) Submit(req RunRequest) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.policy == PolicyReject && c.inflight > 0 {
		c.logger.Debug().Msg("request rejected: run in progress")
		return ErrBusy
	}

	select {
	case c.requests <- req:
		c.inflight++
		c.logger.Debug().Int("inflight", c.inflight).Msg("request accepted")
		return nil
	default:
		c.logger.Warn().Int("queue_size", c.queueSize).Msg("request rejected: queue full")
		return ErrQueueFull
	}
}

// Pending returns the number of accepted requests that have not finished,
// including the active run.
func (c *Channel) Pending() int {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.inflight
}

// Stop cancels the active run, drops queued requests and closes every
// subscription. It blocks until the relay has exited and is safe to call
// more than once.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.stateMu.Lock()
		c.closed = true
		c.stateMu.Unlock()

		c.cancel()
		<-c.done
		c.logger.Debug().Msg("channel stopped")
	})
}

// Done is closed once the channel has stopped.
func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) relay() {
	defer close(c.done)
	defer c.closeSubscribers()

	for {
		select {
		case <-c.ctx.Done():
			return
		case req := <-c.requests:
			c.execute(req)

			c.stateMu.Lock()
			c.inflight--
			c.stateMu.Unlock()
		}
	}
}

func (c *Channel) execute(req RunRequest) {
	ctx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	if req.OnStart != nil {
		req.OnStart()
	}
	events, err := c.runner.RunStream(ctx, req.Prompt)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Error().Err(err).Msg("run failed to start")
		c.publish(event.Error{Meta: event.Meta{Timestamp: time.Now()}, Err: err})
		return
	}
	for e := range events {
		c.publish(e)
	}
}

// publish delivers e to every subscriber in turn. A full subscriber holds
// up delivery until it drains, closes or the channel stops.
func (c *Channel) publish(e event.Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, s := range c.subs {
		select {
		case s.ch <- e:
		case <-s.done:
		case <-c.ctx.Done():
			return
		}
	}
}

// Subscribe registers a new subscriber. It receives the events published
// after this call. Subscribing to a stopped channel returns a subscription
// whose Events channel is already closed.
func (c *Channel) Subscribe() *Subscription {
	s := &Subscription{
		ch:   make(chan event.Event, c.subBuffer),
		done: make(chan struct{}),
		c:    c,
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.subsDone {
		close(s.ch)
		return s
	}
	c.nextSubID++
	s.id = c.nextSubID
	c.subs[s.id] = s
	return s
}

func (c *Channel) unsubscribe(s *Subscription) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if _, ok := c.subs[s.id]; !ok {
		return
	}
	delete(c.subs, s.id)
	close(s.ch)
}

func (c *Channel) closeSubscribers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for id, s := range c.subs {
		close(s.ch)
		delete(c.subs, id)
	}
	c.subsDone = true
}

// Subscription is one consumer of a Channel's output.
type Subscription struct {
	id   uint64
	ch   chan event.Event
	done chan struct{}
	once sync.Once
	c    *Channel
}

// Events returns the subscriber's event stream. It is closed by Close or
// when the channel stops.
func (s *Subscription) Events() <-chan event.Event { return s.ch }

// Close removes the subscriber. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.c.unsubscribe(s)
	})
}

// Stream submits prompt and returns the events of that run only. The
// returned channel is closed after the run's terminal event, when ctx is done
// or when the channel stops. Cancelling ctx detaches the caller; the run
// itself continues for the remaining subscribers.
func (c *Channel) Stream(ctx context.Context, prompt string) (<-chan event.Event, error) {
	subs := make(chan *Subscription, 1)
	err := c.Submit(RunRequest{
		Prompt:  prompt,
		OnStart: func() { subs <- c.Subscribe() },
	})
	if err != nil {
		return nil, err
	}

	out := make(chan event.Event)
	go func() {
		defer close(out)

		var sub *Subscription
		select {
		case sub = <-subs:
		case <-ctx.Done():
			go c.discard(subs)
			return
		case <-c.done:
			return
		}
		defer sub.Close()

		for {
			select {
			case e, ok := <-sub.Events():
				if !ok {
					return
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
				if e.Terminal() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// discard closes a subscription whose caller left before its run started.
func (c *Channel) discard(subs <-chan *Subscription) {
	select {
	case s := <-subs:
		s.Close()
	case <-c.done:
	}
}
