package audio

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSink struct {
	mu     sync.Mutex
	writes [][]byte
	resets int32
}

func (f *fakeSink) Write(pcm []byte) {
	f.mu.Lock()
	f.writes = append(f.writes, pcm)
	f.mu.Unlock()
}

func (f *fakeSink) Reset() { atomic.AddInt32(&f.resets, 1) }

func (f *fakeSink) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// pcmOf returns a buffer whose playback duration at 24kHz mono s16 equals d.
func pcmOf(d time.Duration) []byte {
	n := int(int64(24000*2) * int64(d) / int64(time.Second))
	return make([]byte, n)
}

func TestScheduler_WatermarkGovernsOverArrivalJitter(t *testing.T) {
	s := NewScheduler(&fakeSink{}, 24000)
	t0 := time.Now()
	clock := t0
	s.now = func() time.Time { return clock }

	// Two fragments of 500ms and 300ms arrive 50ms apart.
	start1 := s.Schedule(pcmOf(500 * time.Millisecond))
	clock = t0.Add(50 * time.Millisecond)
	start2 := s.Schedule(pcmOf(300 * time.Millisecond))

	if !start1.Equal(t0) {
		t.Fatalf("first start = %v, want %v", start1, t0)
	}
	if want := t0.Add(500 * time.Millisecond); !start2.Equal(want) {
		t.Fatalf("second start = %v, want %v (watermark, not arrival)", start2, want)
	}
}

func TestScheduler_StartTimesNeverOverlap(t *testing.T) {
	s := NewScheduler(&fakeSink{}, 24000)
	t0 := time.Now()
	clock := t0
	s.now = func() time.Time { return clock }

	durations := []time.Duration{
		120 * time.Millisecond,
		40 * time.Millisecond,
		300 * time.Millisecond,
		10 * time.Millisecond,
	}
	var prevStart time.Time
	var prevEnd time.Time
	for i, d := range durations {
		// Arrival times wander: sometimes ahead of playback, sometimes behind.
		clock = t0.Add(time.Duration(i) * 70 * time.Millisecond)
		start := s.Schedule(pcmOf(d))
		if start.Before(prevStart) {
			t.Fatalf("fragment %d: start %v before previous start %v", i, start, prevStart)
		}
		if start.Before(prevEnd) {
			t.Fatalf("fragment %d: start %v overlaps previous end %v", i, start, prevEnd)
		}
		if start.Before(clock) {
			t.Fatalf("fragment %d: start %v before clock %v", i, start, clock)
		}
		prevStart = start
		prevEnd = start.Add(d)
	}
}

func TestScheduler_CatchesUpAfterGap(t *testing.T) {
	s := NewScheduler(&fakeSink{}, 24000)
	t0 := time.Now()
	clock := t0
	s.now = func() time.Time { return clock }

	s.Schedule(pcmOf(100 * time.Millisecond))
	// Long network silence: the next fragment arrives well past the watermark
	// and must start immediately, not at the stale watermark.
	clock = t0.Add(2 * time.Second)
	start := s.Schedule(pcmOf(100 * time.Millisecond))
	if !start.Equal(clock) {
		t.Fatalf("start after gap = %v, want %v", start, clock)
	}
}

func TestScheduler_ActiveSetDrainsOnCompletion(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, 24000)

	s.Schedule(pcmOf(10 * time.Millisecond))
	if s.Active() != 1 {
		t.Fatalf("expected 1 active buffer, got %d", s.Active())
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && s.Active() != 0 {
		time.Sleep(2 * time.Millisecond)
	}
	if s.Active() != 0 {
		t.Fatalf("active set not drained after playback")
	}
	if sink.writeCount() != 1 {
		t.Fatalf("expected 1 sink write, got %d", sink.writeCount())
	}
}

func TestScheduler_StopAllHaltsPendingBuffers(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, 24000)

	// Push the watermark far ahead so the second buffer cannot have started.
	s.Schedule(pcmOf(time.Second))
	s.Schedule(pcmOf(time.Second))
	s.StopAll()

	if s.Active() != 0 {
		t.Fatalf("expected empty active set after StopAll, got %d", s.Active())
	}
	if atomic.LoadInt32(&sink.resets) != 1 {
		t.Fatalf("expected sink.Reset to be called once")
	}
	writesAtStop := sink.writeCount()
	time.Sleep(50 * time.Millisecond)
	if sink.writeCount() != writesAtStop {
		t.Fatalf("buffer played after StopAll")
	}
	// A stopped scheduler accepts nothing new.
	s.Schedule(pcmOf(10 * time.Millisecond))
	if s.Active() != 0 {
		t.Fatalf("stopped scheduler accepted a buffer")
	}
}

func TestScheduler_FlushKeepsSchedulerUsable(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, 24000)
	t0 := time.Unix(100, 0)
	s.now = func() time.Time { return t0 }

	s.Schedule(pcmOf(time.Second))
	s.Schedule(pcmOf(time.Second))
	s.Flush()

	if s.Active() != 0 {
		t.Fatalf("expected empty active set after Flush, got %d", s.Active())
	}
	if atomic.LoadInt32(&sink.resets) != 1 {
		t.Fatalf("expected sink.Reset to be called once")
	}
	// The watermark is cleared: the next buffer starts immediately instead of
	// behind the cancelled audio.
	if start := s.Schedule(pcmOf(500 * time.Millisecond)); !start.Equal(t0) {
		t.Fatalf("post-flush start = %v, want %v", start, t0)
	}
	if s.Active() != 1 {
		t.Fatalf("flushed scheduler rejected a new buffer")
	}
}

func TestScheduler_Duration(t *testing.T) {
	s := NewScheduler(&fakeSink{}, 24000)
	if d := s.Duration(pcmOf(500 * time.Millisecond)); d != 500*time.Millisecond {
		t.Fatalf("duration = %v, want 500ms", d)
	}
	if d := s.Duration(nil); d != 0 {
		t.Fatalf("duration of empty buffer = %v, want 0", d)
	}
}
