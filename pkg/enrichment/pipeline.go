package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/creature-catalog/pkg/catalog"
	"github.com/Sternrassler/creature-catalog/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by a refresh that was overtaken by a newer one
// and therefore published nothing.
var ErrSuperseded = errors.New("refresh superseded by a newer refresh")

// Config holds pipeline configuration
type Config struct {
	// MaxConcurrency caps in-flight detail calls. <= 0 issues every call at once.
	MaxConcurrency int
	// ItemTimeout bounds one detail call. <= 0 disables the per-item timeout.
	ItemTimeout time.Duration
}

// DefaultConfig returns the default configuration: a full page of 20 detail
// calls in flight at once.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 20,
		ItemTimeout:    15 * time.Second,
	}
}

// Pipeline fetches a list page, resolves every entry concurrently and
// publishes the ordered result to its slot.
type Pipeline struct {
	client catalog.Client
	config Config
	slot   *Slot
	logger zerolog.Logger

	mu           sync.Mutex
	generation   uint64
	cancelLatest context.CancelCauseFunc

	inflight sync.WaitGroup
}

// New creates a pipeline over client.
func New(client catalog.Client, config Config) *Pipeline {
	if client == nil {
		panic("catalog client cannot be nil")
	}

	return &Pipeline{
		client: client,
		config: config,
		slot:   NewSlot(),
		logger: logging.NewLogger("enrichment"),
	}
}

// Current returns a snapshot of the published ResultSet.
func (p *Pipeline) Current() ResultSet {
	return p.slot.Current()
}

// Subscribe registers l; it immediately receives the current ResultSet.
func (p *Pipeline) Subscribe(l Listener) Subscription {
	return p.slot.Subscribe(l)
}

// Unsubscribe removes a listener.
func (p *Pipeline) Unsubscribe(s Subscription) {
	p.slot.Unsubscribe(s)
}

// Lookup returns the entity with id from the published ResultSet.
func (p *Pipeline) Lookup(id int) (DisplayEntity, bool) {
	return p.slot.current.Load().Find(id)
}

// Refresh runs one refresh synchronously. It returns nil when a ResultSet was
// published (possibly shorter than the page when items were skipped),
// ErrSuperseded when a newer refresh overtook it, and the list error
// otherwise. List failures are also delivered to subscribers.
func (p *Pipeline) Refresh(ctx context.Context, offset, limit int) error {
	if err := catalog.ValidatePage(offset, limit); err != nil {
		return err
	}

	gen, runCtx, done := p.begin(ctx)
	defer done()

	return p.run(runCtx, gen, offset, limit)
}

// RefreshAsync starts a refresh in the background and returns immediately.
// The generation is taken before returning, so of two calls the later one
// wins regardless of completion order. Only argument errors are returned.
func (p *Pipeline) RefreshAsync(ctx context.Context, offset, limit int) error {
	if err := catalog.ValidatePage(offset, limit); err != nil {
		return err
	}

	gen, runCtx, done := p.begin(ctx)

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer done()

		if err := p.run(runCtx, gen, offset, limit); err != nil && !errors.Is(err, ErrSuperseded) {
			p.logger.Debug().Err(err).Uint64("generation", gen).Msg("Background refresh failed")
		}
	}()

	return nil
}

// Wait blocks until every background refresh has returned.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// begin allocates the next generation and cancels the previous in-flight refresh.
func (p *Pipeline) begin(parent context.Context) (uint64, context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)

	p.mu.Lock()
	p.generation++
	gen := p.generation
	if p.cancelLatest != nil {
		p.cancelLatest(ErrSuperseded)
	}
	p.cancelLatest = cancel
	p.mu.Unlock()

	return gen, ctx, func() {
		p.mu.Lock()
		if p.generation == gen {
			p.cancelLatest = nil
		}
		p.mu.Unlock()
		cancel(nil)
	}
}

func (p *Pipeline) run(ctx context.Context, gen uint64, offset, limit int) error {
	start := time.Now()
	defer func() {
		RefreshDuration.Observe(time.Since(start).Seconds())
	}()

	logger := p.logger.With().
		Str("refresh_id", uuid.NewString()).
		Uint64("generation", gen).
		Logger()

	logger.Debug().
		Int("offset", offset).
		Int("limit", limit).
		Msg("Starting refresh")

	summaries, err := p.client.ListPage(ctx, offset, limit)
	if err != nil {
		if superseded(ctx) {
			return p.supersede(logger)
		}
		return p.failRefresh(logger, gen, fmt.Errorf("list page: %w", err))
	}

	summaries = dedupe(summaries, logger)
	resolved := p.resolve(ctx, summaries, logger)

	if ctx.Err() != nil {
		if superseded(ctx) {
			return p.supersede(logger)
		}
		return p.failRefresh(logger, gen, fmt.Errorf("refresh cancelled: %w", context.Cause(ctx)))
	}

	rs := ResultSet{
		Generation: gen,
		Offset:     offset,
		Limit:      limit,
		Entities:   make([]DisplayEntity, 0, len(resolved)),
	}
	for _, e := range resolved {
		if e != nil {
			rs.Entities = append(rs.Entities, *e)
		}
	}

	if !p.slot.publish(rs) {
		return p.supersede(logger)
	}

	RefreshTotal.WithLabelValues(outcomeSuccess).Inc()
	ResultSetSize.Set(float64(rs.Len()))

	logger.Info().
		Int("entities", rs.Len()).
		Int("skipped", len(summaries)-rs.Len()).
		Dur("duration", time.Since(start)).
		Msg("Refresh published")

	return nil
}

// resolve fans out one detail call per summary and waits for all of them.
// The result is indexed like summaries; failed items are nil.
func (p *Pipeline) resolve(ctx context.Context, summaries []catalog.Summary, logger zerolog.Logger) []*DisplayEntity {
	resolved := make([]*DisplayEntity, len(summaries))

	var g errgroup.Group
	if p.config.MaxConcurrency > 0 {
		g.SetLimit(p.config.MaxConcurrency)
	}

	for i, s := range summaries {
		g.Go(func() error {
			detail, err := p.getItem(ctx, s.ID)
			if err != nil {
				if ctx.Err() != nil {
					// The whole refresh is being abandoned; not an item failure.
					return nil
				}
				class := string(catalog.KindOf(err))
				if class == "" {
					class = "unknown"
				}
				ItemsSkipped.WithLabelValues(class).Inc()

				logger.Warn().
					Err(err).
					Int("item_id", s.ID).
					Str("error_class", class).
					Msg("Skipping item")
				return nil
			}

			e := FromDetail(detail)
			resolved[i] = &e
			return nil
		})
	}

	// Item goroutines never return an error.
	_ = g.Wait()

	return resolved
}

func (p *Pipeline) getItem(ctx context.Context, id int) (*catalog.Detail, error) {
	if p.config.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ItemTimeout)
		defer cancel()
	}

	detail, err := p.client.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, catalog.ProtocolError("get", fmt.Sprintf("empty detail for id %d", id), nil)
	}
	if detail.ID != id {
		return nil, catalog.ProtocolError("get", fmt.Sprintf("requested id %d, got %d", id, detail.ID), nil)
	}
	return detail, nil
}

func (p *Pipeline) failRefresh(logger zerolog.Logger, gen uint64, err error) error {
	RefreshTotal.WithLabelValues(outcomeFailed).Inc()
	logger.Error().Err(err).Msg("Refresh failed, keeping previous result set")
	p.slot.fail(gen, err)
	return err
}

func (p *Pipeline) supersede(logger zerolog.Logger) error {
	RefreshTotal.WithLabelValues(outcomeSuperseded).Inc()
	logger.Debug().Msg("Refresh superseded, discarding result")
	return ErrSuperseded
}

func superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}

// dedupe keeps the first occurrence of every id.
func dedupe(summaries []catalog.Summary, logger zerolog.Logger) []catalog.Summary {
	seen := make(map[int]struct{}, len(summaries))
	out := summaries[:0:0]
	for _, s := range summaries {
		if _, ok := seen[s.ID]; ok {
			logger.Warn().Int("item_id", s.ID).Msg("Dropping duplicate id from list page")
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}
