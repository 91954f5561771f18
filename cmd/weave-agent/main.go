// Command weave-agent runs the placement agent for one page: it submits
// the page fingerprint, then polls the server for instructions and
// applies them. By default it works on fetched markup in memory; with
// -browser it drives a live Chrome page through Rod.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/weave/agent"
	"github.com/hazyhaar/weave/agent/browser"
	"github.com/hazyhaar/weave/agent/capture"
	"github.com/hazyhaar/weave/agent/page"
)

func main() {
	var (
		serverURL  = flag.String("server", "http://localhost:8090", "weave server base URL")
		apiKey     = flag.String("key", "", "API key (wv_...)")
		pageURL    = flag.String("url", "", "page the agent runs on")
		referrer   = flag.String("referrer", "", "referrer URL for the fingerprint")
		connector  = flag.String("connector", "", "connector phrase before inserted links")
		useBrowser = flag.Bool("browser", false, "drive a live Chrome page instead of fetched markup")
		remoteURL  = flag.String("remote", "", "WebSocket URL of an external Chrome (with -browser)")
		stealth    = flag.Bool("stealth", true, "apply the stealth preset (with -browser)")
		warmup     = flag.Duration("warmup", agent.DefaultWarmup, "delay before the first poll")
		interval   = flag.Duration("interval", agent.DefaultPollInterval, "poll interval")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *apiKey == "" || *pageURL == "" {
		slog.Error("both -key and -url are required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, options{
		serverURL:  *serverURL,
		apiKey:     *apiKey,
		pageURL:    *pageURL,
		referrer:   *referrer,
		connector:  *connector,
		useBrowser: *useBrowser,
		remoteURL:  *remoteURL,
		stealth:    *stealth,
		warmup:     *warmup,
		interval:   *interval,
		logger:     logger,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("weave-agent failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	serverURL  string
	apiKey     string
	pageURL    string
	referrer   string
	connector  string
	useBrowser bool
	remoteURL  string
	stealth    bool
	warmup     time.Duration
	interval   time.Duration
	logger     *slog.Logger
}

func run(ctx context.Context, opts options) error {
	var mutator agent.ContentMutator
	var htmlSrc string

	if opts.useBrowser {
		sess, err := browser.Open(ctx, browser.Config{
			RemoteURL: opts.remoteURL,
			Stealth:   opts.stealth,
			Logger:    opts.logger,
		}, opts.pageURL)
		if err != nil {
			return err
		}
		defer sess.Close()

		htmlSrc, err = sess.HTML(ctx)
		if err != nil {
			return err
		}
		mutator = sess
	} else {
		var err error
		htmlSrc, err = fetchHTML(ctx, opts.pageURL)
		if err != nil {
			return err
		}
		doc, err := page.ParseString(htmlSrc)
		if err != nil {
			return err
		}
		mutator = page.NewMutator(doc)
	}

	capt, err := capture.FromHTML(htmlSrc, opts.pageURL, 0)
	if err != nil {
		return err
	}

	cfg := agent.Config{
		Fingerprint: agent.Fingerprint{
			URL:      opts.pageURL,
			Title:    capt.Title,
			Referrer: opts.referrer,
			Content:  capt.Text,
		},
		Connector: opts.connector,
		Logger:    opts.logger,
	}
	api := agent.NewClient(opts.serverURL, opts.apiKey, opts.pageURL)
	return agent.New(cfg, api, mutator).Run(ctx, opts.warmup, opts.interval)
}

func fetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
