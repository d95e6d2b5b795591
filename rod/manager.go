package rod

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// DefaultMaxPages is the number of pages rendered before the browser is
// replaced.
const DefaultMaxPages = 75

var errManagerClosed = errors.New("browser manager is closed")

// instance is one launched Chrome process and its connection.
type instance struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	rendered int64
	active   int
	retired  bool
}

func launch() (*instance, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Leakless(true).
		Headless(true)

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	return &instance{browser: b, launcher: l}, nil
}

func (in *instance) close() error {
	err := in.browser.Close()
	in.launcher.Kill()
	return err
}

// BrowserManager hands out a shared headless browser and swaps in a fresh
// one after a fixed number of renders, since Chrome's memory use only grows
// over a long indexing run. A replaced browser stays up until its last
// render is released. It is safe for concurrent use.
type BrowserManager struct {
	mu       sync.Mutex
	current  *instance
	maxPages int64
	closed   bool
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithMaxPages sets how many pages are rendered before the browser is
// replaced. Zero disables replacement.
func WithMaxPages(n int64) ManagerOption {
	return func(bm *BrowserManager) {
		bm.maxPages = n
	}
}

// NewBrowserManager launches a headless browser. Close must be called when
// the manager is no longer needed.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(bm)
	}

	in, err := launch()
	if err != nil {
		return nil, err
	}
	bm.current = in
	return bm, nil
}

// Acquire returns the browser to render one page with and a release func
// that must be called once the page is closed.
func (bm *BrowserManager) Acquire() (*rod.Browser, func(), error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil, nil, errManagerClosed
	}
	if bm.maxPages > 0 && bm.current.rendered >= bm.maxPages {
		bm.recycle()
	}

	in := bm.current
	in.active++
	in.rendered++

	var once sync.Once
	release := func() {
		once.Do(func() {
			bm.mu.Lock()
			defer bm.mu.Unlock()
			in.active--
			if in.retired && in.active == 0 {
				_ = in.close()
			}
		})
	}
	return in.browser, release, nil
}

// recycle keeps the current browser when a replacement cannot be
// launched. Must be called with mu held.
func (bm *BrowserManager) recycle() {
	next, err := launch()
	if err != nil {
		return
	}
	old := bm.current
	bm.current = next
	old.retired = true
	if old.active == 0 {
		_ = old.close()
	}
}

// Close shuts the current browser down, including renders still in
// flight. It is safe to call more than once.
func (bm *BrowserManager) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil
	}
	bm.closed = true
	return bm.current.close()
}

// LauncherPID returns the process ID of the current browser launcher, or
// zero once closed.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.closed {
		return 0
	}
	return bm.current.launcher.PID()
}
