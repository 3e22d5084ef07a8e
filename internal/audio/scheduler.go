package audio

import (
	"sync"
	"time"
)

// Sink receives scheduled PCM buffers at their start time and can drop any
// audio it has queued internally.
type Sink interface {
	Write(pcm []byte)
	Reset()
}

type scheduledBuffer struct {
	startTimer *time.Timer
	doneTimer  *time.Timer
}

// Scheduler orders decoded playback buffers behind a monotonic watermark so
// they play gaplessly and never overlap, regardless of network arrival jitter.
// Each buffer of duration d starts at max(watermark, now) and advances the
// watermark to start+d.
type Scheduler struct {
	sink       Sink
	sampleRate int
	now        func() time.Time

	mu        sync.Mutex
	watermark time.Time
	active    map[int]*scheduledBuffer
	nextID    int
	stopped   bool
}

// NewScheduler constructs a scheduler delivering mono 16-bit PCM at the given
// sample rate into sink.
func NewScheduler(sink Sink, sampleRate int) *Scheduler {
	return &Scheduler{
		sink:       sink,
		sampleRate: sampleRate,
		now:        time.Now,
		active:     make(map[int]*scheduledBuffer),
	}
}

// Duration reports the playback duration of a PCM buffer at the scheduler's
// sample rate (mono, 2 bytes per sample).
func (s *Scheduler) Duration(pcm []byte) time.Duration {
	bytesPerSecond := s.sampleRate * 2
	if bytesPerSecond <= 0 || len(pcm) == 0 {
		return 0
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(bytesPerSecond)
}

// Schedule enqueues one decoded buffer for playback and returns its start
// time. Buffers are never rescheduled.
func (s *Scheduler) Schedule(pcm []byte) time.Time {
	d := s.Duration(pcm)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.stopped {
		return now
	}
	start := now
	if s.watermark.After(start) {
		start = s.watermark
	}
	s.watermark = start.Add(d)

	id := s.nextID
	s.nextID++
	buf := &scheduledBuffer{}
	buf.startTimer = time.AfterFunc(start.Sub(now), func() { s.play(id, pcm) })
	buf.doneTimer = time.AfterFunc(s.watermark.Sub(now), func() { s.complete(id) })
	s.active[id] = buf
	return start
}

func (s *Scheduler) play(id int, pcm []byte) {
	s.mu.Lock()
	_, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.sink.Write(pcm)
}

// complete removes a buffer from the active set exactly once, on natural
// completion. Buffers already removed by StopAll are left alone.
func (s *Scheduler) complete(id int) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Active reports how many scheduled buffers have not yet finished.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Flush cancels every scheduled buffer, resets the watermark and drops any
// audio queued in the sink. The scheduler keeps accepting new buffers; this
// is the interruption path, not teardown.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	s.flushLocked()
	s.mu.Unlock()
	s.sink.Reset()
}

// StopAll flushes like Flush and additionally shuts the scheduler down; no
// further buffers are accepted.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	s.flushLocked()
	s.stopped = true
	s.mu.Unlock()
	s.sink.Reset()
}

func (s *Scheduler) flushLocked() {
	for id, buf := range s.active {
		buf.startTimer.Stop()
		buf.doneTimer.Stop()
		delete(s.active, id)
	}
	s.watermark = time.Time{}
}
