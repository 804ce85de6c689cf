package harvest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-harvester/internal/collector"
	"github.com/sells-group/poi-harvester/internal/model"
	"github.com/sells-group/poi-harvester/internal/resilience"
	"github.com/sells-group/poi-harvester/pkg/amap"
)

// NewFetcher adapts an amap.Client to the collector's page-fetch capability
// for one search endpoint, translating service failures into the retry
// taxonomy: quota/credential rejections are fatal, rate limits and transport
// hiccups are retryable, and a success envelope with no item list at all is
// malformed.
func NewFetcher(client amap.Client, endpoint amap.Endpoint) collector.PageFetcher {
	return collector.FetcherFunc(func(ctx context.Context, q model.Query) (*collector.Page, error) {
		resp, err := client.Search(ctx, endpoint, q.Values())
		if err != nil {
			return nil, classify(err)
		}

		if resp.POIs == nil {
			return nil, resilience.NewMalformedError(
				eris.Errorf("harvest: %s response reported success without a pois list", endpoint))
		}

		items := make([]model.Item, len(resp.POIs))
		for i, poi := range resp.POIs {
			items[i] = model.Item(poi)
		}

		page := &collector.Page{Items: items}
		if total, ok := resp.ReportedCount(); ok {
			page.ReportedTotal = total
			page.HasTotal = true
		}
		return page, nil
	})
}

// NewRoutingFetcher picks the endpoint per query from its shape: ids force
// the detail endpoint, a polygon the polygon endpoint, a center point the
// around endpoint, anything else the keyword text endpoint. Routing lets one
// collector (and so one rate limiter) serve every search method.
func NewRoutingFetcher(client amap.Client) collector.PageFetcher {
	return collector.FetcherFunc(func(ctx context.Context, q model.Query) (*collector.Page, error) {
		return NewFetcher(client, EndpointFor(q)).FetchPage(ctx, q)
	})
}

// EndpointFor maps a query to the search endpoint that can serve it.
func EndpointFor(q model.Query) amap.Endpoint {
	switch {
	case q.IDs != "":
		return amap.EndpointDetail
	case q.Polygon != "":
		return amap.EndpointPolygon
	case q.Location != "":
		return amap.EndpointAround
	default:
		return amap.EndpointText
	}
}

func classify(err error) error {
	switch {
	case amap.IsQuotaExhausted(err):
		return resilience.NewFatalError(err, "10044")
	case amap.IsInvalidKey(err):
		return resilience.NewFatalError(err, "10001")
	case amap.IsRateLimited(err):
		return resilience.NewRetryableError(err, "")
	default:
		// Transport-level failures fall through to the network heuristics
		// in resilience.IsRetryable; anything else stays non-retryable.
		return err
	}
}
