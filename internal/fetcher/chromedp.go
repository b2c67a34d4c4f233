package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromedpConfig controls the headless browser fetcher.
type ChromedpConfig struct {
	UserAgent          string
	ViewportWidth      int
	ViewportHeight     int
	ChallengeWait      time.Duration
	ChallengeExtraWait time.Duration
	FetchTimeout       time.Duration
}

func (c ChromedpConfig) withDefaults() ChromedpConfig {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1920
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1080
	}
	if c.ChallengeWait <= 0 {
		c.ChallengeWait = 10 * time.Second
	}
	if c.ChallengeExtraWait <= 0 {
		c.ChallengeExtraWait = 15 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 90 * time.Second
	}
	return c
}

// Chromedp fetches pages through headless Chrome. A shared exec allocator is
// created once; each fetch gets its own browser context which is always
// released before the fetch returns.
type Chromedp struct {
	cfg         ChromedpConfig
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewChromedp creates the allocator used by all subsequent fetches.
func NewChromedp(cfg ChromedpConfig, logger *zap.Logger) (*Chromedp, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Chromedp{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close releases the allocator and any browser it spawned.
func (f *Chromedp) Close() {
	f.allocCancel()
}

// FetchPage navigates to url, waits for a possible challenge interstitial to
// resolve, and returns the rendered markup. After the initial wait, if the
// page still looks like a challenge, it waits once more and then proceeds
// with whatever markup is present; the parser decides whether it is usable.
func (f *Chromedp) FetchPage(ctx context.Context, url string) (string, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.FetchTimeout)
	defer cancel()

	// Honor cancellation of the caller's context as well.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	var (
		markup     string
		currentURL string
	)
	f.logger.Info("navigating to rankings page", zap.String("url", url))
	err := chromedp.Run(taskCtx,
		f.userAgentAction(),
		chromedp.Navigate(url),
		chromedp.Sleep(f.cfg.ChallengeWait),
		chromedp.Location(&currentURL),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("headless navigation: %w", err)
	}

	if IsChallengePage(markup, currentURL) {
		f.logger.Warn("challenge page still present, waiting longer",
			zap.String("current_url", currentURL),
			zap.Duration("extra_wait", f.cfg.ChallengeExtraWait),
		)
		err = chromedp.Run(taskCtx,
			chromedp.Sleep(f.cfg.ChallengeExtraWait),
			chromedp.Location(&currentURL),
			chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		)
		if err != nil {
			return "", fmt.Errorf("headless challenge wait: %w", err)
		}
	}

	f.logger.Info("page content retrieved",
		zap.String("current_url", currentURL),
		zap.Int("markup_bytes", len(markup)),
	)
	return markup, nil
}

func (f *Chromedp) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if f.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}
