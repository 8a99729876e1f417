// Package tasks fetches open tasks and gives each a relative due label and an
// overdue flag.
package tasks

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/infoboard/internal/cache"
	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/clock"
	"github.com/kjstillabower/infoboard/internal/models"
	"github.com/kjstillabower/infoboard/internal/observability"
)

const (
	DefaultEndpoint = "https://api.todoist.com/rest/v2/tasks"
	DefaultLimit    = 10
	DefaultTTL      = 120 * time.Second

	// undatedHorizon places undated tasks after every dated task in practice.
	undatedHorizon = 365 * 24 * time.Hour

	source = "tasks"
)

// Options configures a Normalizer. Table may be nil to disable caching.
type Options struct {
	Endpoint string
	Location *time.Location
	Timeout  time.Duration
	Fetcher  client.Getter
	Table    *cache.Table[[]Task]
	Clock    clock.Clock
	Logger   *zap.Logger
}

// Query selects tasks. ProjectID is optional; Limit <= 0 means DefaultLimit.
type Query struct {
	Token     string
	ProjectID string
	Limit     int
}

// Normalizer fetches and labels tasks. Safe for concurrent use.
type Normalizer struct {
	endpoint string
	location *time.Location
	timeout  time.Duration
	fetcher  client.Getter
	table    *cache.Table[[]Task]
	clock    clock.Clock
	logger   *zap.Logger

	zonesMu sync.Mutex
	zones   map[string]*time.Location
}

func NewNormalizer(opts Options) *Normalizer {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Normalizer{
		endpoint: opts.Endpoint,
		location: opts.Location,
		timeout:  opts.Timeout,
		fetcher:  opts.Fetcher,
		table:    opts.Table,
		clock:    clock.OrReal(opts.Clock),
		logger:   observability.OrNop(opts.Logger),
		zones:    make(map[string]*time.Location),
	}
}

// List returns at most Limit tasks ordered by due instant, undated last, then
// title. An empty token returns an empty list without a call. A rejected
// token is ErrInvalidCredential; other failures are ErrUpstreamUnavailable or
// ErrUpstreamParse.
func (n *Normalizer) List(ctx context.Context, q Query) ([]models.TaskRecord, error) {
	token := strings.TrimSpace(q.Token)
	if token == "" {
		return []models.TaskRecord{}, nil
	}
	projectID := strings.TrimSpace(q.ProjectID)

	tasks, err := n.table.GetOrFetch(ctx, cache.Key(token, projectID), func(ctx context.Context) ([]Task, error) {
		return n.fetch(ctx, token, projectID)
	})
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return n.present(tasks, n.clock.Now(), limit), nil
}

func (n *Normalizer) fetch(ctx context.Context, token, projectID string) ([]Task, error) {
	req := client.Request{
		Source:      source,
		URL:         n.endpoint,
		BearerToken: token,
		Accept:      "application/json",
		Timeout:     n.timeout,
	}
	if projectID != "" {
		req.Query = map[string]string{"project_id": projectID}
	}
	body, err := n.fetcher.Get(ctx, req)
	if err != nil {
		return nil, err
	}

	raw, err := taskArray(body)
	if err != nil {
		return nil, client.ParseError(source, err)
	}
	out := make([]Task, 0, len(raw))
	for i, r := range raw {
		t, ok := parseTask(r, n.location, n.zone)
		if !ok {
			observability.RecordSkippedItem(source, "no_title")
			n.logger.Debug("task skipped", zap.Int("index", i), zap.String("reason", "no_title"))
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// present labels, orders and truncates tasks against now. tasks is shared
// through the cache and is not modified.
func (n *Normalizer) present(tasks []Task, now time.Time, limit int) []models.TaskRecord {
	sentinel := now.Add(undatedHorizon)
	type keyed struct {
		task Task
		key  time.Time
	}
	sorted := make([]keyed, 0, len(tasks))
	for _, t := range tasks {
		k := sentinel
		if t.Due != nil {
			k = t.Due.Instant
		}
		sorted = append(sorted, keyed{task: t, key: k})
	}
	slices.SortStableFunc(sorted, func(a, b keyed) int {
		if c := a.key.Compare(b.key); c != 0 {
			return c
		}
		return cmp.Compare(a.task.Title, b.task.Title)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]models.TaskRecord, 0, len(sorted))
	for _, k := range sorted {
		rec := models.TaskRecord{
			ID:       k.task.ID,
			Title:    k.task.Title,
			DueLabel: label(k.task.Due, now, n.location),
			Overdue:  overdue(k.task.Due, now, n.location),
			URL:      k.task.URL,
		}
		if k.task.Due != nil {
			instant := k.task.Due.Instant.UTC()
			rec.DueInstant = &instant
		}
		out = append(out, rec)
	}
	return out
}

// zone loads and memoizes a per-task timezone. Unknown names yield nil so the
// target zone applies.
func (n *Normalizer) zone(name string) *time.Location {
	n.zonesMu.Lock()
	defer n.zonesMu.Unlock()
	if loc, ok := n.zones[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		n.logger.Debug("unknown task timezone", zap.String("timezone", name), zap.Error(err))
		loc = nil
	}
	n.zones[name] = loc
	return loc
}
