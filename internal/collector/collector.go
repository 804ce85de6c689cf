// Package collector drives a paginated, rate-limited search capability until
// a query context is exhausted, accumulating every page's items.
package collector

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/poi-harvester/internal/model"
	"github.com/sells-group/poi-harvester/internal/resilience"
)

// Page is one bounded response from the search capability. ReportedTotal is
// the server's claimed result count; the upstream service is known to under-
// and over-report it, so it is surfaced for logging only and never used as a
// stop signal.
type Page struct {
	Items         []model.Item
	ReportedTotal int
	HasTotal      bool
}

// PageFetcher issues one page query. Implementations signal unrecoverable
// conditions with resilience.FatalError and transient ones with
// resilience.RetryableError or resilience.MalformedError.
type PageFetcher interface {
	FetchPage(ctx context.Context, q model.Query) (*Page, error)
}

// FetcherFunc adapts a function to the PageFetcher interface.
type FetcherFunc func(ctx context.Context, q model.Query) (*Page, error)

// FetchPage implements PageFetcher.
func (f FetcherFunc) FetchPage(ctx context.Context, q model.Query) (*Page, error) {
	return f(ctx, q)
}

// Config tunes the collection loop.
type Config struct {
	// PageSize is the per-page record count requested from the service.
	// Default: 25 (the service maximum).
	PageSize int

	// MaxPages bounds the page index so a misbehaving service cannot spin
	// the loop forever. Default: 100.
	MaxPages int

	// RPS caps the request rate, retries included. Default: 2.
	RPS float64

	// Retry is the per-page retry policy.
	Retry resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 25
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 100
	}
	if c.RPS <= 0 {
		c.RPS = 2
	}
	return c
}

// Collector accumulates all pages for single query contexts. One collector
// serializes every request it issues through a shared limiter, which is the
// run-global rate contract of the upstream service.
type Collector struct {
	fetcher PageFetcher
	limiter *rate.Limiter
	cfg     Config
}

// New creates a collector over the given fetch capability.
func New(fetcher PageFetcher, cfg Config) *Collector {
	cfg = cfg.withDefaults()
	return &Collector{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		cfg:     cfg,
	}
}

// PageSize returns the configured per-page record count.
func (c *Collector) PageSize() int { return c.cfg.PageSize }

// CollectAll fetches pages for q starting at index 1 until the service runs
// dry: an empty page, a short page, or the page ceiling. Whatever was
// accumulated before a failure is returned alongside the error so the caller
// can decide whether partial results are usable.
func (c *Collector) CollectAll(ctx context.Context, q model.Query) ([]model.Item, error) {
	log := zap.L().With(zap.String("component", "collector"))

	var items []model.Item
	for pageNum := 1; pageNum <= c.cfg.MaxPages; pageNum++ {
		pageQuery := q.WithPage(pageNum, c.cfg.PageSize)

		page, err := resilience.Retry(ctx, c.retryConfig(pageNum), func(ctx context.Context) (*Page, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "collector: rate limit wait")
			}
			return c.fetcher.FetchPage(ctx, pageQuery)
		})
		if err != nil {
			return items, eris.Wrapf(err, "collector: fetch page %d", pageNum)
		}

		if pageNum == 1 && page.HasTotal {
			// Display only. The service lies about totals, so the stop
			// signal is the short or empty page below.
			log.Info("server-reported total (untrusted)",
				zap.Int("reported_total", page.ReportedTotal))
		}

		if len(page.Items) == 0 {
			break
		}
		items = append(items, page.Items...)

		log.Debug("page collected",
			zap.Int("page", pageNum),
			zap.Int("page_items", len(page.Items)),
			zap.Int("accumulated", len(items)),
		)

		if len(page.Items) < c.cfg.PageSize {
			break
		}
	}

	return items, nil
}

func (c *Collector) retryConfig(pageNum int) resilience.RetryConfig {
	cfg := c.cfg.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error) {
			zap.L().Warn("page fetch failed, retrying",
				zap.Int("page", pageNum),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}
	return cfg
}
