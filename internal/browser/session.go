// Package browser drives a Chromium instance through the DevTools protocol
// using go-rod. A Session either owns a browser process it launched or
// holds its own browser context on a shared remote browser, plus one page.
package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	defaultActionTimeout = 30 * time.Second
	defaultMaxElements   = 150
	defaultMaxTextChars  = 4000
)

// Config controls how a browser session is launched.
type Config struct {
	Headless       bool
	NoSandbox      bool
	ExecutablePath string        // empty = let rod find or download Chromium
	ControlURL     string        // connect to an existing CDP endpoint instead of launching
	ActionTimeout  time.Duration // per navigation/click/type timeout
	MaxElements    int
	MaxTextChars   int
}

// Session is an isolated browser with a single active page.
type Session struct {
	cfg      Config
	launcher *launcher.Launcher
	owned    bool      // browser process was launched by this session
	conn     io.Closer // CDP websocket to a remote browser
	browser  *rod.Browser
	page     *rod.Page
}

// New launches (or connects to) a browser and opens a blank page.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	if cfg.MaxElements <= 0 {
		cfg.MaxElements = defaultMaxElements
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = defaultMaxTextChars
	}

	s := &Session{cfg: cfg}

	var b *rod.Browser
	if cfg.ControlURL == "" {
		l := launcher.New().Context(ctx).Headless(cfg.Headless).NoSandbox(cfg.NoSandbox)
		if cfg.ExecutablePath != "" {
			l = l.Bin(cfg.ExecutablePath)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		s.launcher = l
		s.owned = true
		b = rod.New().ControlURL(u)
	} else {
		ws := &cdp.WebSocket{}
		if err := ws.Connect(ctx, cfg.ControlURL, nil); err != nil {
			return nil, fmt.Errorf("connect browser: %w", err)
		}
		s.conn = ws
		b = rod.New().Client(cdp.New().Start(ws))
	}

	if err := b.Connect(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	if err := s.useContext(b); err != nil {
		_ = s.Close()
		return nil, err
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s.page = page

	slog.Debug("browser session started", "headless", cfg.Headless, "remote", cfg.ControlURL != "")
	return s, nil
}

// useContext picks the browser the session works in. A launched browser is
// used as is; a shared remote browser gets a fresh context so tasks do not
// see each other's cookies or storage.
func (s *Session) useContext(b *rod.Browser) error {
	if s.owned {
		s.browser = b
		return nil
	}
	inc, err := b.Incognito()
	if err != nil {
		return fmt.Errorf("create browser context: %w", err)
	}
	s.browser = inc
	return nil
}

// pageFor returns the page bound to ctx with the action timeout applied.
func (s *Session) pageFor(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.cfg.ActionTimeout)
}

// Navigate opens url in the current page and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}
	p := s.pageFor(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("browser wait load failed", "url", url, "error", err)
	}
	return nil
}

// GoBack navigates one entry back in history.
func (s *Session) GoBack(ctx context.Context) error {
	p := s.pageFor(ctx)
	if err := p.NavigateBack(); err != nil {
		return fmt.Errorf("go back: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("browser wait load failed", "error", err)
	}
	return nil
}

// Click clicks the element tagged with index by the last State call.
func (s *Session) Click(ctx context.Context, index int) error {
	el, err := s.element(ctx, index)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		slog.Debug("browser scroll into view failed", "index", index, "error", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click element %d: %w", index, err)
	}
	// Clicks often trigger navigation; give the page a chance to settle.
	if err := s.pageFor(ctx).WaitLoad(); err != nil {
		slog.Debug("browser wait load failed", "error", err)
	}
	return nil
}

// Type replaces the content of the element at index with text, optionally pressing Enter.
func (s *Session) Type(ctx context.Context, index int, text string, submit bool) error {
	el, err := s.element(ctx, index)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		slog.Debug("browser select text failed", "index", index, "error", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into element %d: %w", index, err)
	}
	if submit {
		if err := el.Type(input.Enter); err != nil {
			return fmt.Errorf("submit element %d: %w", index, err)
		}
		if err := s.pageFor(ctx).WaitLoad(); err != nil {
			slog.Debug("browser wait load failed", "error", err)
		}
	}
	return nil
}

// Scroll moves the viewport by most of a screen.
func (s *Session) Scroll(ctx context.Context, down bool) error {
	dir := 1
	if !down {
		dir = -1
	}
	if _, err := s.pageFor(ctx).Eval(scrollJS, dir); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// State snapshots the page and re-indexes its interactive elements.
func (s *Session) State(ctx context.Context, withScreenshot bool) (*PageState, error) {
	p := s.pageFor(ctx)
	res, err := p.Eval(stateJS, s.cfg.MaxElements, s.cfg.MaxTextChars)
	if err != nil {
		return nil, fmt.Errorf("read page state: %w", err)
	}

	var st PageState
	if err := json.Unmarshal([]byte(res.Value.Str()), &st); err != nil {
		return nil, fmt.Errorf("decode page state: %w", err)
	}

	if withScreenshot {
		quality := 60
		img, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: &quality,
		})
		if err != nil {
			slog.Debug("browser screenshot failed", "error", err)
		} else {
			st.Screenshot = base64.StdEncoding.EncodeToString(img)
		}
	}
	return &st, nil
}

// ExtractText returns the full visible text of the page, capped at maxChars runes.
func (s *Session) ExtractText(ctx context.Context, maxChars int) (string, error) {
	res, err := s.pageFor(ctx).Eval(textJS)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	text := strings.TrimSpace(res.Value.Str())
	if maxChars > 0 {
		text = Truncate(text, maxChars)
	}
	return text, nil
}

// Close releases what the session holds. A launched browser is shut down;
// on a remote browser only the session's context is disposed and the
// browser itself keeps running.
func (s *Session) Close() error {
	var firstErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			firstErr = fmt.Errorf("close browser: %w", err)
		}
		s.browser = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close connection: %w", err)
		}
		s.conn = nil
	}
	s.killLauncher()
	return firstErr
}

func (s *Session) element(ctx context.Context, index int) (*rod.Element, error) {
	el, err := s.pageFor(ctx).Element(elementSelector(index))
	if err != nil {
		return nil, fmt.Errorf("element %d not found (refresh page state): %w", index, err)
	}
	return el, nil
}

func (s *Session) killLauncher() {
	if s.launcher == nil {
		return
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	s.launcher = nil
}
