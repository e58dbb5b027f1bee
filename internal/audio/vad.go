// Package audio holds the microphone-side decision logic: the RMS voice
// activity detector that ends an utterance on silence, and the wake-phrase
// spotter supervisor. Neither touches capture hardware; they consume sample
// buffers and transcript streams handed in by the caller.
package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"browser-operator/internal/config"
)

// SampleSource yields the most recent time-domain samples in -1..1.
type SampleSource interface {
	Read(buf []float32) (int, error)
}

type VADConfig struct {
	SpeechThreshold float64
	MinRecordTime   time.Duration
	SilenceWindow   time.Duration
	FrameInterval   time.Duration
	BufferSize      int
}

func DefaultVADConfig() VADConfig {
	pol := config.Default().Audio
	return VADConfig{
		SpeechThreshold: pol.SpeechThreshold,
		MinRecordTime:   pol.MinRecordTime,
		SilenceWindow:   pol.SilenceWindow,
		FrameInterval:   16 * time.Millisecond, // display-frame cadence
		BufferSize:      2048,
	}
}

// Detector decides when a spoken utterance has ended. The silence callback
// fires at most once per Start and never before speech was observed.
type Detector struct {
	cfg       VADConfig
	onSilence func()

	mu           sync.Mutex
	started      time.Time
	speechSeen   bool
	silenceStart time.Time
	fired        bool
	level        float64
	cancel       context.CancelFunc
	done         chan struct{}
}

func NewDetector(cfg VADConfig, onSilence func()) *Detector {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 16 * time.Millisecond
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 2048
	}
	return &Detector{cfg: cfg, onSilence: onSilence}
}

// Start begins the sampling loop. It must be paired with Stop to release
// the loop when recording ends.
func (d *Detector) Start(ctx context.Context, src SampleSource) {
	ctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	d.started = time.Now()
	d.speechSeen = false
	d.silenceStart = time.Time{}
	d.fired = false
	d.cancel = cancel
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		buf := make([]float32, d.cfg.BufferSize)
		ticker := time.NewTicker(d.cfg.FrameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := src.Read(buf)
				if err != nil {
					return
				}
				if stop := d.process(RMS(buf[:n]), time.Now()); stop {
					return
				}
			}
		}
	}()
}

// process runs one energy check and reports whether sampling should stop.
func (d *Detector) process(rms float64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.level = math.Min(1, rms*displayGain)

	// ignore click noise right after recording starts
	if now.Sub(d.started) < d.cfg.MinRecordTime {
		return false
	}

	if rms >= d.cfg.SpeechThreshold {
		d.speechSeen = true
		d.silenceStart = time.Time{}
		return false
	}

	if !d.speechSeen {
		return false
	}

	if d.silenceStart.IsZero() {
		d.silenceStart = now
		return false
	}

	if now.Sub(d.silenceStart) >= d.cfg.SilenceWindow && !d.fired {
		d.fired = true
		if d.onSilence != nil {
			// release the lock across the callback; it may call back in
			cb := d.onSilence
			d.mu.Unlock()
			cb()
			d.mu.Lock()
		}
		return true
	}
	return false
}

const displayGain = 5

// Level returns the last sampled energy normalized to 0..1 for display.
func (d *Detector) Level() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

// Stop tears down the sampling loop. Safe to call twice.
func (d *Detector) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	done := d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RMS computes root-mean-square energy over one sample buffer.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
