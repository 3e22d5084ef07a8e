package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AskInward/Voice-Calc/internal/audio"
	"github.com/AskInward/Voice-Calc/internal/calc"
	"github.com/AskInward/Voice-Calc/internal/live"
)

// State is the controller's lifecycle position. StateError behaves like
// StateIdle for everything except display: a new Connect is allowed and there
// is no automatic reconnect.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Capture produces microphone PCM frames.
type Capture interface {
	Start(emit audio.FrameFunc) error
	Stop()
}

// Player schedules synthesized PCM for gapless playback.
type Player interface {
	Schedule(pcm []byte) time.Time
	Flush()
	StopAll()
}

// Live is one remote speech session.
type Live interface {
	Connect(ctx context.Context) error
	SendAudio(pcm []byte) error
	Close() error
}

// Deps supplies fresh pipeline components per session. Each factory is
// invoked once per Connect.
type Deps struct {
	NewCapture func() (Capture, error)
	NewPlayer  func() (Player, error)
	NewLive    func(cb live.Callbacks) (Live, error)
}

// Callbacks surfaces session events upward. OnStateChange is invoked with
// the controller's lock held and must not call back into the Controller.
type Callbacks struct {
	OnOperation   func(op calc.Operation)
	OnTranscript  func(text string)
	OnStateChange func(s State)
}

// Controller owns at most one active session at a time and serializes its
// lifecycle. Connect and Disconnect are idempotent.
type Controller struct {
	deps Deps
	cb   Callbacks

	mu      sync.Mutex
	state   State
	sess    *activeSession
	lastErr error
}

// activeSession bundles one session's components behind a closed guard so a
// late callback from a torn-down session cannot reach a fresh one.
type activeSession struct {
	id      string
	capture Capture
	player  Player
	live    Live
	closed  atomic.Bool
}

func (s *activeSession) done() bool { return s.closed.Load() }

// shutdown stops the components in pipeline order: no more outbound frames,
// then no more playback, then the transport. Runs at most once.
func (s *activeSession) shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.capture != nil {
		s.capture.Stop()
	}
	if s.player != nil {
		s.player.StopAll()
	}
	if s.live != nil {
		_ = s.live.Close()
	}
}

func NewController(deps Deps, cb Callbacks) *Controller {
	return &Controller{deps: deps, cb: cb, state: StateIdle}
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a session is live.
func (c *Controller) IsConnected() bool { return c.State() == StateConnected }

// IsConnecting reports whether a session is being set up.
func (c *Controller) IsConnecting() bool { return c.State() == StateConnecting }

// Err reports the failure that put the controller in StateError, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Connect builds a fresh capture/transport/playback pipeline and brings it
// up. Calling Connect while connecting or connected is a no-op.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.lastErr = nil
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	sess := &activeSession{id: uuid.NewString()}
	log.Printf("session %s: connecting", sess.id)

	player, err := c.deps.NewPlayer()
	if err != nil {
		return c.fail(fmt.Errorf("session %s: open playback: %w", sess.id, err))
	}
	sess.player = player

	lv, err := c.deps.NewLive(live.Callbacks{
		OnOperation: func(op calc.Operation) {
			if sess.done() || c.cb.OnOperation == nil {
				return
			}
			c.cb.OnOperation(op)
		},
		OnTranscript: func(text string) {
			if sess.done() || c.cb.OnTranscript == nil {
				return
			}
			c.cb.OnTranscript(text)
		},
		OnAudio: func(pcm []byte) {
			if sess.done() {
				return
			}
			player.Schedule(pcm)
		},
		OnInterrupted: func() {
			if sess.done() {
				return
			}
			player.Flush()
		},
		OnClosed: func(err error) {
			c.onTransportClosed(sess, err)
		},
	})
	if err != nil {
		player.StopAll()
		return c.fail(fmt.Errorf("session %s: build transport: %w", sess.id, err))
	}
	sess.live = lv

	if err := lv.Connect(ctx); err != nil {
		player.StopAll()
		return c.fail(fmt.Errorf("session %s: connect: %w", sess.id, err))
	}

	capture, err := c.deps.NewCapture()
	if err != nil {
		_ = lv.Close()
		player.StopAll()
		return c.fail(fmt.Errorf("session %s: open microphone: %w", sess.id, err))
	}
	sess.capture = capture
	if err := capture.Start(func(pcm []byte) {
		if sess.done() {
			return
		}
		_ = lv.SendAudio(pcm)
	}); err != nil {
		_ = lv.Close()
		player.StopAll()
		return c.fail(fmt.Errorf("session %s: start microphone: %w", sess.id, err))
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect raced the setup; unwind the pipeline we just built.
		c.mu.Unlock()
		sess.shutdown()
		return nil
	}
	c.sess = sess
	c.setStateLocked(StateConnected)
	c.mu.Unlock()
	log.Printf("session %s: connected", sess.id)
	return nil
}

// Disconnect tears the active session down. Safe to call from any state and
// more than once.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	if sess != nil {
		sess.shutdown()
		log.Printf("session %s: disconnected", sess.id)
	}
}

// onTransportClosed handles the remote side or the network ending the
// session. Events from a session that is no longer current are ignored.
func (c *Controller) onTransportClosed(sess *activeSession, err error) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	if err != nil {
		c.lastErr = fmt.Errorf("connection to the speech service was lost: %w", err)
		c.setStateLocked(StateError)
	} else {
		c.setStateLocked(StateIdle)
	}
	c.mu.Unlock()

	sess.shutdown()
	if err != nil {
		log.Printf("session %s: connection lost: %v", sess.id, err)
	} else {
		log.Printf("session %s: closed by remote", sess.id)
	}
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.lastErr = err
	c.setStateLocked(StateError)
	c.mu.Unlock()
	log.Printf("session: %v", err)
	return err
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.cb.OnStateChange != nil {
		c.cb.OnStateChange(s)
	}
}
