package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spetersoncode/codison/agent"
	"github.com/spetersoncode/codison/event"
	"github.com/spetersoncode/codison/provider/providertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner emits PartialText{Delta: prompt} then Done for each run. A run
// whose prompt was held waits for release before finishing.
type fakeRunner struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	started   chan string
	cancelled atomic.Int32
	startErr  error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (f *fakeRunner) hold(prompt string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[prompt] = gate
	f.mu.Unlock()
	return func() { close(gate) }
}

func (f *fakeRunner) RunStream(ctx context.Context, prompt string) (<-chan event.Event, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started <- prompt

	f.mu.Lock()
	gate := f.gates[prompt]
	f.mu.Unlock()

	out := make(chan event.Event)
	go func() {
		defer close(out)
		meta := event.Meta{RunID: prompt, Step: 1}
		if !event.Emit(ctx, out, event.PartialText{Meta: meta, Delta: prompt}) {
			return
		}
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				f.cancelled.Add(1)
				return
			}
		}
		event.Emit(ctx, out, event.Done{Meta: meta, Steps: 1})
	}()
	return out, nil
}

func waitStarted(t *testing.T, f *fakeRunner, prompt string) {
	t.Helper()
	select {
	case got := <-f.started:
		require.Equal(t, prompt, got)
	case <-time.After(time.Second):
		t.Fatalf("run %q never started", prompt)
	}
}

// receive reads n events or fails after a timeout.
func receive(t *testing.T, s *Subscription, n int) []event.Event {
	t.Helper()
	var out []event.Event
	for len(out) < n {
		select {
		case e, ok := <-s.Events():
			require.True(t, ok, "subscription closed after %d events", len(out))
			out = append(out, e)
		case <-time.After(time.Second):
			t.Fatalf("received %d of %d events", len(out), n)
		}
	}
	return out
}

func runIDs(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Metadata().RunID
	}
	return out
}

func TestChannel_FanOut(t *testing.T) {
	p := providertest.New(providertest.Text("Hel", "lo"))
	a := agent.New(p, nil, nil)
	c := New(a)
	defer c.Stop()

	s1 := c.Subscribe()
	s2 := c.Subscribe()

	require.NoError(t, c.Submit(RunRequest{Prompt: "hi"}))

	want := []event.Kind{event.KindPartialText, event.KindPartialText, event.KindFullText, event.KindDone}
	for _, s := range []*Subscription{s1, s2} {
		events := receive(t, s, len(want))
		got := make([]event.Kind, len(events))
		for i, e := range events {
			got[i] = e.Kind()
		}
		assert.Equal(t, want, got)
	}
}

func TestChannel_Serialize(t *testing.T) {
	f := newFakeRunner()
	releaseFirst := f.hold("first")
	c := New(f)
	defer c.Stop()
	sub := c.Subscribe()

	require.NoError(t, c.Submit(RunRequest{Prompt: "first"}))
	waitStarted(t, f, "first")
	require.NoError(t, c.Submit(RunRequest{Prompt: "second"}))
	assert.Equal(t, 2, c.Pending())

	first := receive(t, sub, 1)
	assert.Equal(t, "first", first[0].Metadata().RunID)

	select {
	case p := <-f.started:
		t.Fatalf("run %q started while another was active", p)
	case <-time.After(20 * time.Millisecond):
	}

	releaseFirst()
	rest := receive(t, sub, 3)
	assert.Equal(t, []string{"first", "second", "second"}, runIDs(rest))
	assert.True(t, rest[0].Terminal())
	assert.True(t, rest[2].Terminal())
	assert.Eventually(t, func() bool { return c.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestChannel_OnStartSubscription(t *testing.T) {
	f := newFakeRunner()
	releaseFirst := f.hold("first")
	c := New(f)
	defer c.Stop()

	require.NoError(t, c.Submit(RunRequest{Prompt: "first"}))
	waitStarted(t, f, "first")

	subs := make(chan *Subscription, 1)
	require.NoError(t, c.Submit(RunRequest{
		Prompt:  "second",
		OnStart: func() { subs <- c.Subscribe() },
	}))
	releaseFirst()

	var sub *Subscription
	select {
	case sub = <-subs:
	case <-time.After(time.Second):
		t.Fatal("OnStart never called")
	}
	defer sub.Close()

	events := receive(t, sub, 2)
	assert.Equal(t, []string{"second", "second"}, runIDs(events))
	assert.True(t, events[1].Terminal())
}

func TestChannel_Stream(t *testing.T) {
	t.Run("yields one run", func(t *testing.T) {
		f := newFakeRunner()
		releaseFirst := f.hold("first")
		c := New(f)
		defer c.Stop()

		require.NoError(t, c.Submit(RunRequest{Prompt: "first"}))
		waitStarted(t, f, "first")

		events, err := c.Stream(context.Background(), "second")
		require.NoError(t, err)
		releaseFirst()

		var got []event.Event
		for e := range events {
			got = append(got, e)
		}
		assert.Equal(t, []string{"second", "second"}, runIDs(got))
		assert.Equal(t, event.KindDone, got[1].Kind())
	})

	t.Run("detaches on cancel", func(t *testing.T) {
		f := newFakeRunner()
		release := f.hold("slow")
		defer release()
		c := New(f)
		defer c.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		events, err := c.Stream(ctx, "slow")
		require.NoError(t, err)
		first := <-events
		assert.Equal(t, event.KindPartialText, first.Kind())

		cancel()
		for range events {
		}
		assert.Equal(t, 1, c.Pending())
	})

	t.Run("submit error", func(t *testing.T) {
		c := New(newFakeRunner())
		c.Stop()

		_, err := c.Stream(context.Background(), "late")
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestChannel_QueueFull(t *testing.T) {
	f := newFakeRunner()
	release := f.hold("a")
	c := New(f, WithQueueSize(1))
	defer c.Stop()

	require.NoError(t, c.Submit(RunRequest{Prompt: "a"}))
	waitStarted(t, f, "a")
	require.NoError(t, c.Submit(RunRequest{Prompt: "b"}))
	assert.ErrorIs(t, c.Submit(RunRequest{Prompt: "c"}), ErrQueueFull)
	release()
}

func TestChannel_Reject(t *testing.T) {
	f := newFakeRunner()
	release := f.hold("first")
	c := New(f, WithPolicy(PolicyReject))
	defer c.Stop()
	sub := c.Subscribe()

	require.NoError(t, c.Submit(RunRequest{Prompt: "first"}))
	assert.ErrorIs(t, c.Submit(RunRequest{Prompt: "second"}), ErrBusy)

	waitStarted(t, f, "first")
	release()
	events := receive(t, sub, 2)
	assert.True(t, events[1].Terminal())

	assert.Eventually(t, func() bool {
		return c.Submit(RunRequest{Prompt: "third"}) == nil
	}, time.Second, 5*time.Millisecond)
	waitStarted(t, f, "third")
}

func TestChannel_Stop(t *testing.T) {
	f := newFakeRunner()
	f.hold("long")
	c := New(f)
	sub := c.Subscribe()

	require.NoError(t, c.Submit(RunRequest{Prompt: "long"}))
	waitStarted(t, f, "long")
	receive(t, sub, 1)

	c.Stop()
	c.Stop()

	assert.Equal(t, int32(1), f.cancelled.Load(), "active run is cancelled")
	_, ok := <-sub.Events()
	assert.False(t, ok, "subscription closed")
	assert.ErrorIs(t, c.Submit(RunRequest{Prompt: "late"}), ErrClosed)

	late := c.Subscribe()
	_, ok = <-late.Events()
	assert.False(t, ok)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestChannel_StartError(t *testing.T) {
	f := newFakeRunner()
	f.startErr = errors.New("no provider")
	c := New(f)
	defer c.Stop()
	sub := c.Subscribe()

	require.NoError(t, c.Submit(RunRequest{Prompt: "x"}))
	events := receive(t, sub, 1)

	errEvent, ok := events[0].(event.Error)
	require.True(t, ok)
	assert.Equal(t, "no provider", errEvent.Message())
}

func TestChannel_EmptyPromptSurfacesAsError(t *testing.T) {
	c := New(agent.New(providertest.New(), nil, nil))
	defer c.Stop()
	sub := c.Subscribe()

	require.NoError(t, c.Submit(RunRequest{Prompt: ""}))
	events := receive(t, sub, 1)
	errEvent, ok := events[0].(event.Error)
	require.True(t, ok)
	assert.ErrorIs(t, errEvent.Err, agent.ErrEmptyPrompt)
}

func TestSubscription_Close(t *testing.T) {
	f := newFakeRunner()
	c := New(f)
	defer c.Stop()

	leaver := c.Subscribe()
	stayer := c.Subscribe()
	leaver.Close()
	leaver.Close()

	_, ok := <-leaver.Events()
	assert.False(t, ok)

	require.NoError(t, c.Submit(RunRequest{Prompt: "x"}))
	events := receive(t, stayer, 2)
	assert.Equal(t, []string{"x", "x"}, runIDs(events))
}

func TestSubscription_SlowConsumerLosesNothing(t *testing.T) {
	deltas := make([]string, 20)
	for i := range deltas {
		deltas[i] = "d"
	}
	a := agent.New(providertest.New(providertest.Text(deltas...)), nil, nil)
	c := New(a, WithSubscriberBuffer(1))
	defer c.Stop()
	sub := c.Subscribe()

	require.NoError(t, c.Submit(RunRequest{Prompt: "go"}))

	var got []event.Event
	for e := range sub.Events() {
		time.Sleep(time.Millisecond)
		got = append(got, e)
		if e.Terminal() {
			break
		}
	}
	// 20 deltas, one full text, done.
	assert.Len(t, got, 22)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "", want: PolicySerialize},
		{in: "serialize", want: PolicySerialize},
		{in: "reject", want: PolicyReject},
		{in: "interleave", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}
