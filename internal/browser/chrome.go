package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/chromedp/chromedp"
	"github.com/richxcame/traffic-api/internal/traffic"
	"github.com/richxcame/traffic-api/pkg/config"
	"github.com/richxcame/traffic-api/pkg/tracing"
)

const tracerName = "browser"

// ErrExecutableNotFound is returned by Ping when no browser binary can be resolved
var ErrExecutableNotFound = errors.New("browser executable not found")

// executables are tried in order when no explicit path is configured.
var executables = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// Loader reads computed styles with a fresh headless Chrome per call
type Loader struct {
	cfg config.BrowserConfig
}

var _ traffic.ColorLoader = (*Loader)(nil)

// NewLoader creates a loader for the given browser settings
func NewLoader(cfg config.BrowserConfig) *Loader {
	return &Loader{cfg: cfg}
}

// LoadColorAt opens url, waits for selector and returns its computed color.
// The browser process and its profile are gone by the time it returns.
func (l *Loader) LoadColorAt(ctx context.Context, url, selector string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := runStage(browserCtx, "launch", traffic.ErrSessionLaunch); err != nil {
		return "", err
	}
	if err := runStage(browserCtx, "navigate", traffic.ErrNavigation, chromedp.Navigate(url)); err != nil {
		return "", err
	}
	if err := runStage(browserCtx, "wait", traffic.ErrSelectorWait, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return "", err
	}

	var color string
	if err := runStage(browserCtx, "evaluate", traffic.ErrEvaluation, chromedp.Evaluate(colorScript(selector), &color)); err != nil {
		return "", err
	}
	return color, nil
}

// Ping resolves the browser executable without launching it
func (l *Loader) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := l.executable(); err != nil {
		return err
	}
	return nil
}

func (l *Loader) executable() (string, error) {
	if l.cfg.ExecPath != "" {
		path, err := exec.LookPath(l.cfg.ExecPath)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, l.cfg.ExecPath, err)
		}
		return path, nil
	}
	for _, name := range executables {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrExecutableNotFound
}

func (l *Loader) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.WindowSize(1280, 800),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if l.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.Language != "" {
		opts = append(opts, chromedp.Flag("lang", l.cfg.Language))
	}
	return opts
}

func runStage(ctx context.Context, name string, stage error, actions ...chromedp.Action) error {
	return tracing.TraceStage(ctx, tracerName, name, func(context.Context) error {
		if err := chromedp.Run(ctx, actions...); err != nil {
			return traffic.NewLookupError(stage, err)
		}
		return nil
	})
}

func colorScript(selector string) string {
	return "window.getComputedStyle(document.querySelector(" + strconv.Quote(selector) + ")).getPropertyValue('color')"
}
