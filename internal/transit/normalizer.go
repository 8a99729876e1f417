// Package transit turns a stop's upstream arrival feed into ranked
// ArrivalRecords.
package transit

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/infoboard/internal/cache"
	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/models"
	"github.com/kjstillabower/infoboard/internal/observability"
)

const (
	DefaultEndpoint = "https://apis.data.go.kr/1613000/ArvlInfoInqireService/getSttnAcctoArvlPrearngeInfoList"
	DefaultLimit    = 5
	DefaultTTL      = 30 * time.Second

	source = "transit"
)

// Snapshot is the cached form of one stop: every parseable arrival sorted by
// ETA, before per-call dedup and limit.
type Snapshot struct {
	StopName string                 `json:"stopName"`
	Arrivals []models.ArrivalRecord `json:"arrivals"`
}

// Options configures a Normalizer. Table may be nil to disable caching.
type Options struct {
	Endpoint string
	Timeout  time.Duration
	Fetcher  client.Getter
	Table    *cache.Table[Snapshot]
	Rules    Rules
	Logger   *zap.Logger
}

// Query identifies a stop and how to present it. DedupByRoute defaults to
// true; Limit <= 0 means DefaultLimit.
type Query struct {
	CityCode     string
	NodeID       string
	APIKey       string
	DedupByRoute *bool
	Limit        int
}

// Normalizer fetches and reduces arrival items. Safe for concurrent use.
type Normalizer struct {
	endpoint string
	timeout  time.Duration
	fetcher  client.Getter
	table    *cache.Table[Snapshot]
	rules    Rules
	ladder   []etaRule
	logger   *zap.Logger
}

func NewNormalizer(opts Options) *Normalizer {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules()
	}
	opts.Rules = opts.Rules.withDefaultLabels()
	return &Normalizer{
		endpoint: opts.Endpoint,
		timeout:  opts.Timeout,
		fetcher:  opts.Fetcher,
		table:    opts.Table,
		rules:    opts.Rules,
		ladder:   opts.Rules.ladder(),
		logger:   observability.OrNop(opts.Logger),
	}
}

// Arrivals returns the ranked arrivals for a stop. Missing identifiers yield
// NeedsConfiguration without a network call. Fetch and parse failures are
// returned; individual malformed items are skipped.
func (n *Normalizer) Arrivals(ctx context.Context, q Query) (models.StopResult, error) {
	cityCode := strings.TrimSpace(q.CityCode)
	nodeID := strings.TrimSpace(q.NodeID)
	apiKey := strings.TrimSpace(q.APIKey)
	if cityCode == "" || nodeID == "" || apiKey == "" {
		return models.StopResult{Items: []models.ArrivalRecord{}, NeedsConfiguration: true}, nil
	}

	snap, err := n.table.GetOrFetch(ctx, cache.Key(apiKey, cityCode, nodeID), func(ctx context.Context) (Snapshot, error) {
		return n.fetch(ctx, apiKey, cityCode, nodeID)
	})
	if err != nil {
		return models.StopResult{}, err
	}

	dedup := true
	if q.DedupByRoute != nil {
		dedup = *q.DedupByRoute
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return models.StopResult{
		StopName: snap.StopName,
		Items:    selectArrivals(snap.Arrivals, dedup, limit),
	}, nil
}

func (n *Normalizer) fetch(ctx context.Context, apiKey, cityCode, nodeID string) (Snapshot, error) {
	body, err := n.fetcher.Get(ctx, client.Request{
		Source: source,
		URL:    n.endpoint,
		Query: map[string]string{
			"serviceKey": apiKey,
			"cityCode":   cityCode,
			"nodeId":     nodeID,
		},
		Accept:  "application/xml",
		Timeout: n.timeout,
	})
	if err != nil {
		return Snapshot{}, err
	}

	doc, err := parseDocument(body)
	if err != nil {
		return Snapshot{}, client.ParseError(source, err)
	}
	if err := doc.err(); err != nil {
		return Snapshot{}, err
	}
	return n.normalize(doc.items), nil
}

// normalize builds the sorted arrival list. The stop name comes from the first
// item that has one, including items that are otherwise skipped.
func (n *Normalizer) normalize(items []item) Snapshot {
	snap := Snapshot{Arrivals: make([]models.ArrivalRecord, 0, len(items))}
	for i, it := range items {
		if snap.StopName == "" {
			snap.StopName = it.get(fieldStopName)
		}

		route := it.route()
		if route == "" {
			n.skip(i, "no_route", it)
			continue
		}
		minutes, rule, ok := n.rules.eta(n.ladder, it)
		if !ok {
			n.skip(i, "unparseable_eta", it)
			continue
		}
		n.logger.Debug("transit eta resolved",
			zap.String("route", route),
			zap.String("rule", rule),
			zap.Int("minutes", minutes),
		)
		snap.Arrivals = append(snap.Arrivals, models.ArrivalRecord{
			Route:      route,
			ETAMinutes: minutes,
			ETALabel:   n.rules.label(minutes),
			StopsAway:  n.rules.stopsAway(it.get(fieldStops)),
			RawMessage: it.message(),
		})
	}

	slices.SortStableFunc(snap.Arrivals, func(a, b models.ArrivalRecord) int {
		return cmp.Compare(a.ETAMinutes, b.ETAMinutes)
	})
	return snap
}

func (n *Normalizer) skip(index int, reason string, it item) {
	observability.RecordSkippedItem(source, reason)
	n.logger.Debug("transit item skipped",
		zap.Int("index", index),
		zap.String("reason", reason),
		zap.String("message", it.message()),
	)
}

// selectArrivals copies at most limit records from sorted, keeping only the
// first (lowest ETA) record per route when dedup is set. sorted is never
// modified because it may be shared through the cache.
func selectArrivals(sorted []models.ArrivalRecord, dedup bool, limit int) []models.ArrivalRecord {
	out := make([]models.ArrivalRecord, 0, min(len(sorted), limit))
	seen := make(map[string]bool)
	for _, rec := range sorted {
		if len(out) == limit {
			break
		}
		if dedup {
			if seen[rec.Route] {
				continue
			}
			seen[rec.Route] = true
		}
		out = append(out, rec)
	}
	return out
}
