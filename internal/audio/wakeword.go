package audio

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"browser-operator/internal/application/port/output"
)

// TranscriptStream is one live recognition stream. Results closes on
// natural end or failure; Err reports why.
type TranscriptStream interface {
	Results() <-chan string
	Err() error
	Close()
}

// Recognizer opens recognition streams. Implementations wrap whatever
// speech engine is available; tests use fakes.
type Recognizer interface {
	Start(ctx context.Context) (TranscriptStream, error)
}

// ErrRestartLimit is returned by Run when the recognizer failed more times
// in a row than the configured cap allows.
var ErrRestartLimit = errors.New("wake spotter: restart limit reached")

type SpotterConfig struct {
	WakePhrases  []string
	StopPhrases  []string
	RestartDelay time.Duration
	MaxRestarts  int // consecutive failures; 0 means unlimited
}

// Spotter is the continuously-restarted wake-phrase listener. It matches
// transcripts by substring containment, tolerant of phonetic variants the
// recognizer produces. While recording is active it watches for stop
// phrases instead. Pausing suspends the stream entirely.
type Spotter struct {
	rec    Recognizer
	cfg    SpotterConfig
	log    output.LoggerPort
	onWake func()
	onStop func()

	mu        sync.Mutex
	recording bool
	paused    bool
	resume    chan struct{}
	cancelCur context.CancelFunc
}

func NewSpotter(rec Recognizer, cfg SpotterConfig, log output.LoggerPort, onWake, onStop func()) *Spotter {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 300 * time.Millisecond
	}
	return &Spotter{rec: rec, cfg: cfg, log: log, onWake: onWake, onStop: onStop}
}

// Run supervises the recognition stream until ctx is done. Transient errors
// restart the stream after a jittered delay; natural stream end restarts
// immediately.
func (s *Spotter) Run(ctx context.Context) error {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.waitIfPaused(ctx) != nil {
			return ctx.Err()
		}

		streamCtx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancelCur = cancel
		s.mu.Unlock()

		stream, err := s.rec.Start(streamCtx)
		if err != nil {
			cancel()
			failures++
			if s.cfg.MaxRestarts > 0 && failures >= s.cfg.MaxRestarts {
				return ErrRestartLimit
			}
			s.log.Warn("wake spotter: recognizer start failed", "error", err, "failures", failures)
			if sleepErr := sleepCtx(ctx, s.backoff(failures)); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		failures = 0
		s.consume(stream)
		cancel()

		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("wake spotter: stream error, restarting", "error", err)
			if sleepErr := sleepCtx(ctx, s.backoff(1)); sleepErr != nil {
				return sleepErr
			}
		}
	}
}

func (s *Spotter) consume(stream TranscriptStream) {
	defer stream.Close()
	for transcript := range stream.Results() {
		s.mu.Lock()
		recording := s.recording
		paused := s.paused
		s.mu.Unlock()
		if paused {
			continue
		}
		if recording {
			if matchPhrase(transcript, s.cfg.StopPhrases) && s.onStop != nil {
				s.onStop()
			}
		} else if matchPhrase(transcript, s.cfg.WakePhrases) && s.onWake != nil {
			s.onWake()
		}
	}
}

// SetRecording flips which phrase list applies.
func (s *Spotter) SetRecording(active bool) {
	s.mu.Lock()
	s.recording = active
	s.mu.Unlock()
}

// Pause suspends the spotter and tears down the current stream; the main
// dictation stream owns the microphone while it runs.
func (s *Spotter) Pause() {
	s.mu.Lock()
	if !s.paused {
		s.paused = true
		s.resume = make(chan struct{})
	}
	cancel := s.cancelCur
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Resume lets the supervisor open a fresh stream.
func (s *Spotter) Resume() {
	s.mu.Lock()
	if s.paused {
		s.paused = false
		close(s.resume)
	}
	s.mu.Unlock()
}

func (s *Spotter) waitIfPaused(ctx context.Context) error {
	s.mu.Lock()
	paused := s.paused
	resume := s.resume
	s.mu.Unlock()
	if !paused {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-resume:
		return nil
	}
}

// backoff grows linearly with consecutive failures, with jitter so restarts
// from multiple sessions do not align.
func (s *Spotter) backoff(failures int) time.Duration {
	if failures > 5 {
		failures = 5
	}
	base := s.cfg.RestartDelay * time.Duration(failures)
	jitter := time.Duration(rand.Int63n(int64(s.cfg.RestartDelay)))
	return base + jitter
}

func matchPhrase(transcript string, phrases []string) bool {
	lower := strings.ToLower(transcript)
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
