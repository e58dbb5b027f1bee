// Package rodop drives the live page over CDP: snapshot capture, the
// element registry, and synthetic-input action execution.
package rodop

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/config"
)

type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	timeout  time.Duration
	log      output.LoggerPort

	Registry *Registry
	Extract  *Extractor
	Exec     *Executor
	Forms    *FormScanner
}

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	Settle     time.Duration
}

func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   true,
		SlowMotion: 0,
		Timeout:    10 * time.Second,
		NoSandbox:  false,
		Settle:     120 * time.Millisecond,
	}
}

func NewBrowser(ctx context.Context, cfg BrowserConfig, pol *config.Policy, log output.LoggerPort) (*Browser, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if pol == nil {
		pol = config.Default()
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(controlURL).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	b := &Browser{
		browser:  browser,
		launcher: l,
		page:     page,
		timeout:  cfg.Timeout,
		log:      log,
	}
	b.Registry = NewRegistry(page, cfg.Timeout/4)
	b.Extract = NewExtractor(page, b.Registry, pol, log)
	b.Exec = NewExecutor(page, b.Registry, b.Extract, cfg.Settle, log)
	b.Forms = NewFormScanner(page, b.Registry, b.Exec, pol, log)
	return b, nil
}

// Attach wires the operator components onto an existing page, for callers
// that manage the browser themselves (tests do this).
func Attach(page *rod.Page, pol *config.Policy, log output.LoggerPort) *Browser {
	if pol == nil {
		pol = config.Default()
	}
	b := &Browser{page: page, timeout: 10 * time.Second, log: log}
	b.Registry = NewRegistry(page, 2*time.Second)
	b.Extract = NewExtractor(page, b.Registry, pol, log)
	b.Exec = NewExecutor(page, b.Registry, b.Extract, 50*time.Millisecond, log)
	b.Forms = NewFormScanner(page, b.Registry, b.Exec, pol, log)
	return b
}

func (b *Browser) Page() *rod.Page {
	return b.page
}

// Navigate loads a URL and drops the registry: element identifiers do not
// survive tab navigation.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := b.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := b.page.Context(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("page load failed: %w", err)
	}
	b.page.WaitIdle(5 * time.Second)
	b.Registry.Clear()
	return nil
}

func (b *Browser) CurrentURL() string {
	info, err := b.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// CaptureScreenshot grabs a JPEG of the viewport, downscaled so a sighted
// helper can load it quickly.
func (b *Browser) CaptureScreenshot(ctx context.Context) (*Screenshot, error) {
	imgBytes, err := b.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() > 1024 {
		img = imaging.Resize(img, 1024, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}

	return &Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (b *Browser) Close() {
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}
