// Package browser provides headless Chrome integration via Rod.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// Config defines browser configuration.
type Config struct {
	Headless       bool          `json:"headless" yaml:"headless"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"` // navigation deadline per page
	UserAgent      string        `json:"user_agent" yaml:"user_agent"`
	ViewportWidth  int           `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `json:"viewport_height" yaml:"viewport_height"`
	Bin            string        `json:"bin" yaml:"bin"` // chrome binary; empty lets rod download one
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		ViewportWidth:  1366,
		ViewportHeight: 900,
	}
}

// Tab is one browser page. All tabs of a Browser share its cookies.
type Tab interface {
	// Navigate loads url and returns once the DOM is parsed; it does not
	// wait for images, fonts or long-polling requests.
	Navigate(ctx context.Context, url string) error
	// WaitElement blocks until selector matches or timeout elapses.
	WaitElement(ctx context.Context, selector string, timeout time.Duration) error
	// URL returns the current location after any redirects.
	URL(ctx context.Context) (string, error)
	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
	// LocalStorage returns the current origin's localStorage entries.
	LocalStorage(ctx context.Context) (map[string]string, error)
	Close() error
}

// Browser wraps a Rod browser instance.
type Browser struct {
	browser *rod.Browser
	config  Config

	mu          sync.Mutex
	initScripts []string
	tabCount    int
}

// Launch starts a Chrome process and connects to it.
func Launch(config Config) (*Browser, error) {
	l := launcher.New().Headless(config.Headless)
	if config.Bin != "" {
		l = l.Bin(config.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{
		browser: browser,
		config:  config,
	}, nil
}

// SetCookies installs cookies into the shared browser context.
func (b *Browser) SetCookies(cookies []*proto.NetworkCookieParam) error {
	return b.browser.SetCookies(cookies)
}

// Cookies returns every cookie in the browser context.
func (b *Browser) Cookies() ([]*proto.NetworkCookie, error) {
	return b.browser.GetCookies()
}

// AddInitScript registers js to run before any page script on every tab
// opened afterwards.
func (b *Browser) AddInitScript(js string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initScripts = append(b.initScripts, js)
}

// NewTab opens a blank page configured with the browser's viewport, user
// agent and init scripts.
func (b *Browser) NewTab(ctx context.Context) (Tab, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Viewport and user agent are cosmetic; a failure here is not fatal.
	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  b.config.ViewportWidth,
		Height: b.config.ViewportHeight,
	})
	if b.config.UserAgent != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.config.UserAgent})
	}

	b.mu.Lock()
	scripts := append([]string(nil), b.initScripts...)
	b.tabCount++
	b.mu.Unlock()

	for _, js := range scripts {
		if _, err := page.EvalOnNewDocument(js); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("failed to install init script: %w", err)
		}
	}

	return &rodTab{page: page, timeout: b.config.Timeout}, nil
}

// TabCount returns the number of tabs opened so far.
func (b *Browser) TabCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tabCount
}

// Close closes the browser.
func (b *Browser) Close() error {
	return b.browser.Close()
}

// rodTab implements Tab on a rod page.
type rodTab struct {
	page    *rod.Page
	timeout time.Duration
}

// scoped binds the page to ctx and, when timeout is positive, a deadline.
// release must be called once the operation is over.
func (t *rodTab) scoped(ctx context.Context, timeout time.Duration) (page *rod.Page, release func()) {
	page = t.page.Context(ctx)
	if timeout <= 0 {
		return page, func() {}
	}
	page = page.Timeout(timeout)
	return page, func() { page.CancelTimeout() }
}

func (t *rodTab) Navigate(ctx context.Context, url string) error {
	page, release := t.scoped(ctx, t.timeout)
	defer release()

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return err
	}
	wait()

	return page.GetContext().Err()
}

func (t *rodTab) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	page, release := t.scoped(ctx, timeout)
	defer release()

	_, err := page.Element(selector)
	return err
}

func (t *rodTab) URL(ctx context.Context) (string, error) {
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (t *rodTab) HTML(ctx context.Context) (string, error) {
	return t.page.Context(ctx).HTML()
}

func (t *rodTab) LocalStorage(ctx context.Context) (map[string]string, error) {
	res, err := t.page.Context(ctx).Eval(`() => Object.assign({}, window.localStorage)`)
	if err != nil {
		return nil, err
	}

	return storageEntries(res.Value), nil
}

// storageEntries flattens an evaluated localStorage object. Values are
// always strings in the browser; anything else is re-encoded as JSON.
func storageEntries(v gson.JSON) map[string]string {
	entries := make(map[string]string)
	for k, item := range v.Map() {
		if s, ok := item.Val().(string); ok {
			entries[k] = s
			continue
		}
		entries[k] = item.JSON("", "")
	}
	return entries
}

func (t *rodTab) Close() error {
	return t.page.Close()
}
