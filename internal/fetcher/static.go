package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// StaticConfig controls the plain-HTTP fetcher.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Static fetches pages with a single HTTP GET via Colly. It cannot pass bot
// challenges; it exists for fixture servers, unprotected mirrors, and tests.
type Static struct {
	cfg    StaticConfig
	logger *zap.Logger
}

// NewStatic builds a Static fetcher.
func NewStatic(cfg StaticConfig, logger *zap.Logger) *Static {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Static{cfg: cfg, logger: logger}
}

// FetchPage retrieves url with one GET and returns the response body.
func (f *Static) FetchPage(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("static fetch canceled: %w", err)
	}

	collector := colly.NewCollector()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(url); err != nil {
		return "", fmt.Errorf("visit %s: %w", url, err)
	}
	collector.Wait()

	if fetchErr != nil {
		return "", fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	if len(body) == 0 {
		return "", errors.New("empty response body")
	}
	f.logger.Debug("static fetch complete", zap.String("url", url), zap.Int("bytes", len(body)))
	return string(body), nil
}
