package encryptedquery

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSampler(minDelay time.Duration, capacity int) (*DiagnosticsSampler, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewDiagnosticsSampler(minDelay, capacity)
	s.now = clock.Now
	return s, clock
}

func pull(id string, d time.Duration) PullDiagnostics {
	return PullDiagnostics{ActivityID: id, StatusCode: 200, Duration: d}
}

func recentIDs(s *DiagnosticsSampler) []string {
	var ids []string
	for _, d := range s.Recent() {
		ids = append(ids, d.ActivityID)
	}
	return ids
}

func TestDiagnosticsSampler_Offer(t *testing.T) {
	s, clock := newTestSampler(time.Minute, 8)

	require.True(t, s.Offer(pull("first", 100*time.Millisecond)))

	clock.Advance(time.Second)
	require.False(t, s.Offer(pull("slower, same window", 200*time.Millisecond)))

	clock.Advance(time.Minute)
	require.False(t, s.Offer(pull("faster", 50*time.Millisecond)))
	require.False(t, s.Offer(pull("same", 100*time.Millisecond)))
	require.True(t, s.Offer(pull("slower", 150*time.Millisecond)))
	require.False(t, s.Offer(pull("slowest, same window", time.Second)))

	clock.Advance(time.Minute)
	require.False(t, s.Offer(pull("next window, faster", 120*time.Millisecond)), "the maximum is kept across windows")
	require.True(t, s.Offer(pull("next window, slower", 300*time.Millisecond)))

	require.Equal(t, []string{"first", "slower", "next window, slower"}, recentIDs(s))
}

func TestDiagnosticsSampler_SteadilySlowerPulls(t *testing.T) {
	s, clock := newTestSampler(time.Minute, 8)

	emitted := 0
	for i := 1; i <= 30; i++ {
		if s.Offer(pull("x", time.Duration(i)*time.Millisecond)) {
			emitted++
		}
		clock.Advance(5 * time.Second)
	}

	// 30 pulls over 150s with a one minute delay.
	require.Equal(t, 3, emitted)
}

func TestDiagnosticsSampler_RingBuffer(t *testing.T) {
	s, clock := newTestSampler(time.Second, 3)
	require.Empty(t, s.Recent())

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.True(t, s.Offer(pull(id, time.Duration(i+1)*time.Millisecond)))
		clock.Advance(time.Second)
	}

	require.Equal(t, []string{"c", "d", "e"}, recentIDs(s))
}

func TestDiagnosticsSampler_MinimumCapacity(t *testing.T) {
	s, clock := newTestSampler(time.Minute, 0)
	require.True(t, s.Offer(pull("a", time.Millisecond)))
	clock.Advance(time.Minute)
	require.True(t, s.Offer(pull("b", time.Second)))
	require.Equal(t, []string{"b"}, recentIDs(s))
}

func TestDiagnosticsSampler_Nil(t *testing.T) {
	var s *DiagnosticsSampler
	require.False(t, s.Offer(pull("a", time.Second)))
	require.Nil(t, s.Recent())
}

func TestDiagnosticsSampler_OneEmitPerWindow(t *testing.T) {
	s := NewDiagnosticsSampler(time.Hour, 16)

	var wg sync.WaitGroup
	var mu sync.Mutex
	emitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Offer(pull("x", time.Duration(i+1)*time.Millisecond)) {
				mu.Lock()
				emitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, emitted)
	require.Len(t, s.Recent(), 1)
}

func TestDefaultDiagnosticsSampler(t *testing.T) {
	require.Same(t, DefaultDiagnosticsSampler(), DefaultDiagnosticsSampler())
	require.Equal(t, time.Minute, DefaultDiagnosticsSampler().minDelay)
}
