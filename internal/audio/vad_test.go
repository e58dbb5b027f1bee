package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVADConfig() VADConfig {
	return VADConfig{
		SpeechThreshold: 0.02,
		MinRecordTime:   600 * time.Millisecond,
		SilenceWindow:   1500 * time.Millisecond,
		FrameInterval:   time.Millisecond,
		BufferSize:      64,
	}
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.Equal(t, 0.0, RMS([]float32{0, 0, 0}))
	assert.InDelta(t, 0.5, RMS([]float32{0.5, -0.5, 0.5, -0.5}), 1e-9)
	assert.InDelta(t, 1.0, RMS([]float32{1, -1}), 1e-9)
}

func TestDetectorNeverFiresWithoutSpeech(t *testing.T) {
	fired := false
	d := NewDetector(testVADConfig(), func() { fired = true })
	base := time.Now()
	d.started = base

	// minutes of pure silence
	for i := 0; i < 100; i++ {
		stop := d.process(0.001, base.Add(time.Duration(i)*time.Second))
		assert.False(t, stop)
	}
	assert.False(t, fired, "silence before any speech must not end the utterance")
}

func TestDetectorIgnoresNoiseDuringGuardWindow(t *testing.T) {
	fired := false
	d := NewDetector(testVADConfig(), func() { fired = true })
	base := time.Now()
	d.started = base

	// a loud click 100ms in does not count as speech
	d.process(0.9, base.Add(100*time.Millisecond))
	assert.False(t, d.speechSeen)

	// silence far beyond the window still cannot fire
	d.process(0.001, base.Add(2*time.Second))
	d.process(0.001, base.Add(10*time.Second))
	assert.False(t, fired)
}

func TestDetectorFiresOnceAfterSilenceWindow(t *testing.T) {
	count := 0
	d := NewDetector(testVADConfig(), func() { count++ })
	base := time.Now()
	d.started = base

	d.process(0.5, base.Add(700*time.Millisecond)) // speech
	assert.True(t, d.speechSeen)

	stop := d.process(0.001, base.Add(800*time.Millisecond)) // silence starts
	assert.False(t, stop)
	stop = d.process(0.001, base.Add(1*time.Second))
	assert.False(t, stop, "window not yet elapsed")

	stop = d.process(0.001, base.Add(2500*time.Millisecond))
	assert.True(t, stop)
	assert.Equal(t, 1, count)

	// a late frame must not fire again
	stop = d.process(0.001, base.Add(5*time.Second))
	assert.False(t, stop)
	assert.Equal(t, 1, count)
}

func TestDetectorSpeechResetsSilenceClock(t *testing.T) {
	count := 0
	d := NewDetector(testVADConfig(), func() { count++ })
	base := time.Now()
	d.started = base

	d.process(0.5, base.Add(700*time.Millisecond))
	d.process(0.001, base.Add(800*time.Millisecond))   // silence begins
	d.process(0.5, base.Add(1900*time.Millisecond))    // speaker resumes
	stop := d.process(0.001, base.Add(2*time.Second))  // new silence begins
	assert.False(t, stop)
	stop = d.process(0.001, base.Add(3200*time.Millisecond))
	assert.False(t, stop, "only 1.2s since the new silence started")

	stop = d.process(0.001, base.Add(3600*time.Millisecond))
	assert.True(t, stop)
	assert.Equal(t, 1, count)
}

func TestDetectorLevelNormalized(t *testing.T) {
	d := NewDetector(testVADConfig(), nil)
	d.started = time.Now()

	d.process(0.1, time.Now())
	assert.InDelta(t, 0.5, d.Level(), 1e-9, "rms scaled by display gain")

	d.process(0.9, time.Now())
	assert.Equal(t, 1.0, d.Level(), "level clamps at 1")
}

// stillSource yields constant-energy buffers.
type stillSource struct{ value float32 }

func (s stillSource) Read(buf []float32) (int, error) {
	for i := range buf {
		buf[i] = s.value
	}
	return len(buf), nil
}

func TestDetectorStartStop(t *testing.T) {
	cfg := testVADConfig()
	cfg.MinRecordTime = time.Millisecond
	cfg.SilenceWindow = 5 * time.Millisecond

	fired := make(chan struct{}, 1)
	d := NewDetector(cfg, func() { fired <- struct{}{} })

	// loud source: speech is seen, silence never comes
	d.Start(context.Background(), stillSource{value: 0.5})
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	select {
	case <-fired:
		t.Fatal("constant speech must not trigger the silence callback")
	default:
	}

	// restarting after Stop is allowed
	d.Start(context.Background(), stillSource{value: 0})
	d.Stop()
	d.Stop() // double Stop is safe
}

func TestDetectorSilenceEndsUtterance(t *testing.T) {
	cfg := testVADConfig()
	cfg.MinRecordTime = time.Millisecond
	cfg.SilenceWindow = 5 * time.Millisecond

	fired := make(chan struct{}, 1)
	d := NewDetector(cfg, func() { fired <- struct{}{} })

	src := &fadingSource{loudFrames: 10}
	d.Start(context.Background(), src)
	defer d.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("silence after speech must end the utterance")
	}
}

// fadingSource is loud for the first reads, then silent.
type fadingSource struct {
	mu         sync.Mutex
	loudFrames int
}

func (s *fadingSource) Read(buf []float32) (int, error) {
	s.mu.Lock()
	loud := s.loudFrames > 0
	s.loudFrames--
	s.mu.Unlock()
	v := float32(0)
	if loud {
		v = 0.5
	}
	for i := range buf {
		buf[i] = v
	}
	return len(buf), nil
}

func TestDefaultVADConfigMirrorsPolicy(t *testing.T) {
	cfg := DefaultVADConfig()
	require.Greater(t, cfg.SpeechThreshold, 0.0)
	require.Greater(t, cfg.MinRecordTime, time.Duration(0))
	require.Greater(t, cfg.SilenceWindow, cfg.MinRecordTime)
}
