package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// FrameFunc receives one fixed-size frame of mono 16-bit PCM.
type FrameFunc func(pcm []byte)

// Capture acquires the default microphone and delivers fixed-size PCM frames
// until stopped. The device callback runs on miniaudio's real-time thread;
// frames are handed off through emit and nothing else touches shared state.
type Capture struct {
	sampleRate   int
	frameSamples int

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	mu      sync.Mutex
	pending []byte
	emit    FrameFunc
	stopped bool
}

// NewCapture configures a capture pipeline producing frames of frameSamples
// samples at sampleRate Hz (2048 samples at 16 kHz is ~128 ms of latency).
func NewCapture(sampleRate, frameSamples int) *Capture {
	return &Capture{sampleRate: sampleRate, frameSamples: frameSamples}
}

// Start opens the microphone and begins delivering frames to emit. A failure
// here is a connection-setup failure: no partial state is left behind.
func (c *Capture) Start(emit FrameFunc) error {
	c.mu.Lock()
	c.emit = emit
	c.stopped = false
	c.pending = c.pending[:0]
	c.mu.Unlock()

	ctxCfg := malgo.ContextConfig{}
	ctxCfg.ThreadPriority = malgo.ThreadPriorityRealtime
	malgoCtx, err := malgo.InitContext(nil, ctxCfg, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = 1
	deviceCfg.SampleRate = uint32(c.sampleRate)
	deviceCfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			c.onData(in)
		},
	}
	device, err := malgo.InitDevice(malgoCtx.Context, deviceCfg, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return fmt.Errorf("open microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return fmt.Errorf("start microphone: %w", err)
	}

	c.malgoCtx = malgoCtx
	c.device = device
	return nil
}

// onData accumulates device callback data and emits full frames. Silence is
// emitted like any other frame.
func (c *Capture) onData(in []byte) {
	frameBytes := c.frameSamples * 2

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, in...)
	var frames [][]byte
	for len(c.pending) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, c.pending[:frameBytes])
		c.pending = c.pending[frameBytes:]
		frames = append(frames, frame)
	}
	emit := c.emit
	c.mu.Unlock()

	if emit == nil {
		return
	}
	for _, f := range frames {
		emit(f)
	}
}

// Stop suppresses further frame delivery immediately and tears the device
// down. Safe to call more than once.
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.pending = c.pending[:0]
	device := c.device
	malgoCtx := c.malgoCtx
	c.device = nil
	c.malgoCtx = nil
	c.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	if malgoCtx != nil {
		_ = malgoCtx.Uninit()
	}
}
