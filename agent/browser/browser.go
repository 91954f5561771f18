// Package browser implements the content mutation capability against a
// live Chrome page driven through Rod. Block selection and mutation run
// as in-page JavaScript so the agent sees the rendered DOM, not the
// served markup.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/weave/agent"
)

// Config configures the browser session.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Stealth applies the stealth page preset. Default on for headless
	// placement runs; pages with bot walls reject plain headless Chrome.
	Stealth bool

	// NavigateTimeout bounds navigation plus load wait. Default: 30s.
	NavigateTimeout time.Duration

	// Selectors and word window for candidate blocks. Defaults come from
	// the agent package.
	Selectors []string
	MinWords  int
	MaxWords  int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if len(c.Selectors) == 0 {
		c.Selectors = agent.DefaultSelectors
	}
	if c.MinWords <= 0 {
		c.MinWords = agent.MinBlockWords
	}
	if c.MaxWords <= 0 {
		c.MaxWords = agent.MaxBlockWords
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is one connected page. It implements the agent's mutation
// capability.
type Session struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	logger  *slog.Logger
}

// Open launches (or connects to) Chrome, opens the page, and waits for
// load.
func Open(ctx context.Context, cfg Config, pageURL string) (*Session, error) {
	cfg.defaults()
	s := &Session{cfg: cfg, logger: cfg.Logger}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	var page *rod.Page
	var err error
	if cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	s.page = page

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return s, nil
}

// Close shuts down the page and, when launched locally, Chrome itself.
func (s *Session) Close() error {
	s.cleanup()
	return nil
}

func (s *Session) cleanup() {
	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

// HTML serialises the rendered DOM as outer HTML, for fingerprint
// capture.
func (s *Session) HTML(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// block is a candidate found in the live DOM. The element itself stays
// marked in the page with a data attribute; re-finding it by marker is
// how Mutate survives the round trip through Go.
type block struct {
	text  string
	words int
}

func (b *block) Text() string   { return b.text }
func (b *block) WordCount() int { return b.words }

const blockMarker = "data-weave-block"

const findScript = `(selectors, minWords, maxWords, keywords) => {
	document.querySelectorAll('[` + blockMarker + `]').forEach(el => el.removeAttribute('` + blockMarker + `'));
	const seen = new Set();
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			if (seen.has(el)) continue;
			seen.add(el);
			const text = (el.innerText || '').trim();
			const words = text.split(/\s+/).filter(Boolean).length;
			if (words < minWords || words > maxWords) continue;
			const lower = text.toLowerCase();
			if (keywords.length > 0 && !keywords.some(k => lower.includes(k.toLowerCase()))) continue;
			el.setAttribute('` + blockMarker + `', '1');
			return JSON.stringify({found: true, text: text, words: words});
		}
	}
	return JSON.stringify({found: false});
}`

// FindInsertionPoint scans the rendered DOM for the first qualifying
// block and marks it for the follow-up Mutate call.
func (s *Session) FindInsertionPoint(ctx context.Context, keywords []string) (agent.Block, error) {
	if keywords == nil {
		keywords = []string{}
	}
	res, err := s.page.Context(ctx).Eval(findScript, s.cfg.Selectors, s.cfg.MinWords, s.cfg.MaxWords, keywords)
	if err != nil {
		return nil, fmt.Errorf("browser: find insertion point: %w", err)
	}

	var out struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
		Words int    `json:"words"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &out); err != nil {
		return nil, fmt.Errorf("browser: find insertion point: decode: %w", err)
	}
	if !out.Found {
		return nil, agent.ErrNoInsertionPoint
	}
	return &block{text: out.Text, words: out.Words}, nil
}

const mutateScript = `(href, anchorText, connector) => {
	const el = document.querySelector('[` + blockMarker + `]');
	if (!el) return JSON.stringify({ok: false, error: 'marked block lost'});
	const text = (el.innerText || '').trim();
	const sentences = (text.match(/[^.!?]+[.!?]*/g) || []).map(s => s.trim()).filter(Boolean);
	if (sentences.length < 2) return JSON.stringify({ok: false, short: true});
	const first = sentences[0];
	const rest = sentences.slice(1).join(' ');
	el.textContent = '';
	el.appendChild(document.createTextNode(first + connector));
	const a = document.createElement('a');
	a.setAttribute('href', href);
	a.setAttribute('rel', 'noopener');
	a.textContent = anchorText;
	el.appendChild(a);
	el.appendChild(document.createTextNode('. ' + rest));
	el.removeAttribute('` + blockMarker + `');
	return JSON.stringify({ok: true});
}`

// Mutate splits the marked block after its first sentence and inserts
// the link. The block argument only carries the Go-side view; the live
// element is re-found by marker.
func (s *Session) Mutate(ctx context.Context, _ agent.Block, link agent.Link, connector string) error {
	if connector == "" {
		connector = agent.DefaultConnector
	}
	res, err := s.page.Context(ctx).Eval(mutateScript, link.URL, link.AnchorText, connector)
	if err != nil {
		return fmt.Errorf("browser: mutate: %w", err)
	}

	var out struct {
		OK    bool   `json:"ok"`
		Short bool   `json:"short"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &out); err != nil {
		return fmt.Errorf("browser: mutate: decode: %w", err)
	}
	if out.Short {
		return agent.ErrContentTooShort
	}
	if !out.OK {
		return fmt.Errorf("browser: mutate: %s", out.Error)
	}
	return nil
}

const verifyScript = `(href) => {
	for (const a of document.querySelectorAll('a[href]')) {
		if (a.getAttribute('href') !== href && a.href !== href) continue;
		if (a.offsetParent !== null) return true;
	}
	return false;
}`

// VerifyLink checks the rendered DOM for a visible anchor to targetURL.
// offsetParent is null for detached or display:none elements.
func (s *Session) VerifyLink(ctx context.Context, targetURL string) (bool, error) {
	res, err := s.page.Context(ctx).Eval(verifyScript, targetURL)
	if err != nil {
		return false, fmt.Errorf("browser: verify link: %w", err)
	}
	return res.Value.Bool(), nil
}
