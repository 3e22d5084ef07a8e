package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/AskInward/Voice-Calc/internal/audio"
	"github.com/AskInward/Voice-Calc/internal/calc"
	"github.com/AskInward/Voice-Calc/internal/config"
	"github.com/AskInward/Voice-Calc/internal/live"
	"github.com/AskInward/Voice-Calc/internal/session"
	"github.com/AskInward/Voice-Calc/internal/ui"
)

const (
	captureRate   = 16000
	frameSamples  = 2048
	playbackRate  = 24000
	clearSequence = "\033[H\033[2J"
)

// playback pairs the scheduler with the speaker it feeds so teardown closes
// the output device too.
type playback struct {
	*audio.Scheduler
	speaker *audio.Speaker
}

func (p *playback) StopAll() {
	p.Scheduler.StopAll()
	p.speaker.Close()
}

// app holds the display state fed by session callbacks.
type app struct {
	mu       sync.Mutex
	acc      *calc.Accumulator
	renderer *ui.Renderer
	state    session.State
	hearing  string
}

func (a *app) redraw() {
	a.mu.Lock()
	history := a.acc.History()
	snap := ui.Snapshot{
		State:   a.state.String(),
		Total:   a.acc.Total(),
		Hearing: a.hearing,
		History: history,
		Stats:   calc.Summarize(history),
	}
	a.mu.Unlock()
	fmt.Print(clearSequence)
	fmt.Println(a.renderer.Render(snap))
}

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()
	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}
	endpoint := cfg.LiveEndpoint
	if endpoint == "" {
		endpoint = live.DefaultEndpoint
	}

	a := &app{
		acc:      calc.NewAccumulator(),
		renderer: ui.NewRenderer(),
		state:    session.StateIdle,
	}

	deps := session.Deps{
		NewCapture: func() (session.Capture, error) {
			return audio.NewCapture(captureRate, frameSamples), nil
		},
		NewPlayer: func() (session.Player, error) {
			speaker, err := audio.NewSpeaker(playbackRate)
			if err != nil {
				return nil, err
			}
			return &playback{
				Scheduler: audio.NewScheduler(speaker, playbackRate),
				speaker:   speaker,
			}, nil
		},
		NewLive: func(cb live.Callbacks) (session.Live, error) {
			return live.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, endpoint, cb), nil
		},
	}

	ctrl := session.NewController(deps, session.Callbacks{
		OnOperation: func(op calc.Operation) {
			a.acc.Apply(op)
			a.redraw()
		},
		OnTranscript: func(text string) {
			a.mu.Lock()
			a.hearing = text
			a.mu.Unlock()
			a.redraw()
		},
		OnStateChange: func(s session.State) {
			a.mu.Lock()
			a.state = s
			a.mu.Unlock()
			a.redraw()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Connect(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}
	a.redraw()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("shutdown signal received: %v", sig)

	ctrl.Disconnect()
}
