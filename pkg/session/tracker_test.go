package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/gaze"
	"github.com/teslashibe/go-focus/pkg/persist"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(d)
}

// scriptedClassifier decides from the first byte of the frame:
// 'F' focused, 'U' unfocused, 'X' malformed, 'E' backend failure.
var scriptedClassifier = gaze.ClassifierFunc(func(_ context.Context, frame []byte) (gaze.Result, error) {
	switch frame[0] {
	case 'F':
		return gaze.Result{Focused: true, Direction: gaze.Centered}, nil
	case 'U':
		return gaze.Unfocused(gaze.LookingLeft), nil
	case 'X':
		return gaze.Result{}, fmt.Errorf("%w: bad jpeg", gaze.ErrMalformedFrame)
	default:
		return gaze.Unfocused(gaze.Error), errors.New("backend crashed")
	}
})

type memorySink struct {
	mu      sync.Mutex
	err     error
	records []persist.Record
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Save(_ context.Context, rec persist.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *memorySink) Records() []persist.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]persist.Record(nil), s.records...)
}

// rawConfig disables smoothing so every frame is taken at face value.
func rawConfig(clock *fakeClock) Config {
	cfg := DefaultConfig()
	cfg.Focus = focus.Config{WindowSize: 1, Threshold: 0.5}
	cfg.Clock = clock.Now
	return cfg
}

func TestTrackerScenario(t *testing.T) {
	clock := newFakeClock()
	sink := &memorySink{}
	tr := NewTracker(scriptedClassifier, sink, rawConfig(clock))
	ctx := context.Background()

	ack, err := tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1", ContentID: "m1", SubContentID: "s1"})
	require.NoError(t, err)
	assert.NotEmpty(t, ack.SessionID)

	for sec := 0; sec < 30; sec++ {
		clock.Set(time.Duration(sec) * time.Second)
		frame := []byte("F")
		if sec >= 12 && sec < 20 {
			frame = []byte("U")
		}
		_, err := tr.Frame(ctx, "conn-1", frame)
		require.NoError(t, err)
	}

	clock.Set(30 * time.Second)
	stop, err := tr.Stop(ctx, "conn-1")
	require.NoError(t, err)

	m := stop.Metrics
	assert.Equal(t, 22*time.Second, m.Focused)
	assert.Equal(t, 8*time.Second, m.Unfocused)
	assert.Equal(t, 30*time.Second, m.Total)
	assert.Equal(t, 73.3, m.FocusPercentage)
	assert.Equal(t, 1, m.FocusIntervals)
	assert.Equal(t, 1, m.UnfocusIntervals)

	recs := sink.Records()
	require.Len(t, recs, 1, "only the final flush should have run")
	assert.True(t, recs[0].Final)
	assert.Equal(t, ack.SessionID, recs[0].SessionID)
	assert.Equal(t, "u1", recs[0].SubjectID)
	assert.Equal(t, "s1", recs[0].SubContentID)
	assert.Equal(t, 22.0, recs[0].FocusedSeconds)
	assert.Equal(t, 8.0, recs[0].UnfocusedSeconds)
	assert.Equal(t, 73.3, recs[0].FocusPercentage)
	assert.Equal(t, persist.DefaultSessionKind, recs[0].SessionKind)
}

func TestTrackerFlushCadence(t *testing.T) {
	clock := newFakeClock()
	sink := &memorySink{}
	tr := NewTracker(scriptedClassifier, sink, rawConfig(clock))
	ctx := context.Background()

	_, err := tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1", ContentID: "m1"})
	require.NoError(t, err)

	for sec := 0; sec <= 100; sec += 5 {
		clock.Set(time.Duration(sec) * time.Second)
		_, err := tr.Frame(ctx, "conn-1", []byte("F"))
		require.NoError(t, err)
	}
	clock.Set(102 * time.Second)
	_, err = tr.Stop(ctx, "conn-1")
	require.NoError(t, err)

	recs := sink.Records()
	require.Len(t, recs, 4)
	for i, want := range []float64{30, 60, 90} {
		assert.False(t, recs[i].Final)
		assert.Equal(t, want, recs[i].TotalSeconds)
	}
	assert.True(t, recs[3].Final)
	assert.Equal(t, 102.0, recs[3].TotalSeconds)
	assert.Equal(t, 102.0, recs[3].FocusedSeconds)
}

func TestTrackerStartValidation(t *testing.T) {
	tr := NewTracker(scriptedClassifier, &memorySink{}, rawConfig(newFakeClock()))
	ctx := context.Background()

	_, err := tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1", ContentID: "m1"})
	require.NoError(t, err)
	_, err = tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1", ContentID: "m1"})
	assert.ErrorIs(t, err, ErrDuplicateSession)
}

func TestTrackerStopUnknownConnection(t *testing.T) {
	sink := &memorySink{}
	tr := NewTracker(scriptedClassifier, sink, rawConfig(newFakeClock()))

	_, err := tr.Stop(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, sink.Records())

	tr.Disconnect(context.Background(), "nobody")
	assert.Empty(t, sink.Records())
}

func TestTrackerFrameWithoutSession(t *testing.T) {
	tr := NewTracker(scriptedClassifier, &memorySink{}, rawConfig(newFakeClock()))
	_, err := tr.Frame(context.Background(), "nobody", []byte("F"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTrackerMalformedFramesLeaveStateUntouched(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(scriptedClassifier, &memorySink{}, rawConfig(clock))
	ctx := context.Background()

	_, err := tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1", ContentID: "m1"})
	require.NoError(t, err)

	_, err = tr.Frame(ctx, "conn-1", nil)
	assert.ErrorIs(t, err, gaze.ErrMalformedFrame)
	_, err = tr.Frame(ctx, "conn-1", []byte("X"))
	assert.ErrorIs(t, err, gaze.ErrMalformedFrame)

	s, err := tr.Registry().Lookup("conn-1")
	require.NoError(t, err)
	assert.False(t, s.machine.Accumulator().Started())
	assert.Equal(t, 0, s.machine.Smoother().Len())

	clock.Set(10 * time.Second)
	assert.Equal(t, time.Duration(0), s.Snapshot(clock.Now()).Total)
}

func TestTrackerClassifierFailureIsUnfocused(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(scriptedClassifier, &memorySink{}, rawConfig(clock))
	ctx := context.Background()

	_, err := tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1", ContentID: "m1"})
	require.NoError(t, err)

	_, err = tr.Frame(ctx, "conn-1", []byte("F"))
	require.NoError(t, err)

	clock.Set(4 * time.Second)
	u, err := tr.Frame(ctx, "conn-1", []byte("E"))
	require.NoError(t, err)
	assert.False(t, u.Focused)
	assert.Equal(t, gaze.Error, u.Direction)
	require.NotNil(t, u.Transition)
	assert.Equal(t, focus.Focused, u.Transition.Kind)
	assert.Equal(t, 4*time.Second, u.Metrics.Focused)
}

func TestTrackerSinkFailureKeepsAccounting(t *testing.T) {
	clock := newFakeClock()
	sink := &memorySink{err: errors.New("collector down")}
	tr := NewTracker(scriptedClassifier, sink, rawConfig(clock))
	ctx := context.Background()

	_, err := tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1", ContentID: "m1"})
	require.NoError(t, err)

	for sec := 0; sec <= 40; sec += 10 {
		clock.Set(time.Duration(sec) * time.Second)
		_, err := tr.Frame(ctx, "conn-1", []byte("F"))
		require.NoError(t, err)
	}
	clock.Set(45 * time.Second)
	stop, err := tr.Stop(ctx, "conn-1")
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, stop.Metrics.Focused)
	recs := sink.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 30.0, recs[0].TotalSeconds)
	assert.Equal(t, 45.0, recs[1].TotalSeconds)
}

func TestTrackerEventsAndStatus(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(scriptedClassifier, persist.Discard{}, rawConfig(clock))
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []EventType
	)
	tr.OnEvent(func(ev Event) {
		mu.Lock()
		events = append(events, ev.Type)
		mu.Unlock()
	})

	_, err := tr.Start(ctx, "conn-1", StartRequest{SubjectID: "u1", ContentID: "m1"})
	require.NoError(t, err)

	status := tr.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "conn-1", status[0].ConnectionID)
	assert.Equal(t, "u1", status[0].SubjectID)

	_, err = tr.Frame(ctx, "conn-1", []byte("F"))
	require.NoError(t, err)
	_, err = tr.Stop(ctx, "conn-1")
	require.NoError(t, err)

	assert.Empty(t, tr.Status())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventStarted, EventUpdate, EventStopped}, events)
}

func TestTrackerShutdownFlushesEverySession(t *testing.T) {
	clock := newFakeClock()
	sink := &memorySink{}
	tr := NewTracker(scriptedClassifier, sink, rawConfig(clock))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := tr.Start(ctx, id, StartRequest{SubjectID: "u-" + id, ContentID: "m1"})
		require.NoError(t, err)
	}
	tr.Shutdown(ctx)

	assert.Equal(t, 0, tr.Registry().Len())
	recs := sink.Records()
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.True(t, r.Final)
	}
}

func TestTrackerConcurrentSessions(t *testing.T) {
	sink := &memorySink{}
	tr := NewTracker(scriptedClassifier, sink, DefaultConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("conn-%d", i)
			if _, err := tr.Start(ctx, conn, StartRequest{SubjectID: "u", ContentID: "m"}); err != nil {
				t.Errorf("Start: %v", err)
				return
			}
			for j := 0; j < 20; j++ {
				frame := []byte("F")
				if j%3 == 0 {
					frame = []byte("U")
				}
				if _, err := tr.Frame(ctx, conn, frame); err != nil {
					t.Errorf("Frame: %v", err)
				}
				_ = tr.Status()
			}
			if _, err := tr.Stop(ctx, conn); err != nil {
				t.Errorf("Stop: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, tr.Registry().Len())
	assert.Len(t, sink.Records(), 20)
}
