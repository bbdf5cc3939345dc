// Package harvest drives the exhaustive fetch of a date range: it pages
// through the games API, flattens every match and hands the batches to a
// sink.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"ltd2-harvester/internal/flatten"
	"ltd2-harvester/internal/ltd2"
	"ltd2-harvester/internal/sink"
)

// Fetcher is the single-page fetch operation the driver loops over.
// Note: this is an interface rather than *ltd2.Client so tests can fake the
// remote API without a server.
type Fetcher interface {
	FetchPage(ctx context.Context, req ltd2.PageRequest) ([]ltd2.Game, error)
}

// Config holds the driver parameters.
type Config struct {
	// DateAfter/DateBefore bound the range; zero values default to the
	// earliest available match and now.
	DateAfter  time.Time
	DateBefore time.Time

	// Limit is the page size, capped by the API at ltd2.MaxLimit.
	Limit int

	QueueType string
	Version   string

	// Flatten controls detail level and the builds variant.
	Flatten flatten.Options

	// FlushInterval is the number of accumulated pages between sink
	// flushes. The final page always flushes.
	FlushInterval int

	// RequestDelay is the politeness pause between requests.
	RequestDelay time.Duration

	// RateLimitBackoff is the wait before the single retry of a
	// rate-limited request when the server sent no Retry-After.
	RateLimitBackoff time.Duration

	// MaxNetworkRetries bounds retries of connection-level failures.
	MaxNetworkRetries int
	NetworkRetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 || c.Limit > ltd2.MaxLimit {
		c.Limit = ltd2.MaxLimit
	}
	if c.DateAfter.IsZero() {
		c.DateAfter = ltd2.FirstMatchDate
	}
	if c.DateBefore.IsZero() {
		c.DateBefore = time.Now().UTC()
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 10
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = 10 * time.Second
	}
	if c.MaxNetworkRetries <= 0 {
		c.MaxNetworkRetries = 5
	}
	if c.NetworkRetryDelay <= 0 {
		c.NetworkRetryDelay = 5 * time.Second
	}
	return c
}

// Harvester owns the cursor and the in-progress batch. It is strictly
// sequential: one request in flight, no shared mutable state outside the
// loop.
type Harvester struct {
	fetcher Fetcher
	out     sink.Sink
	cfg     Config

	sm    *StateMachine
	seen  *bloom.BloomFilter
	batch *flatten.Dataset

	cursor time.Time
	end    time.Time
	offset int

	requests int64
	matches  int64
}

// New creates a driver for the given fetcher and sink.
func New(fetcher Fetcher, out sink.Sink, cfg Config) *Harvester {
	cfg = cfg.withDefaults()
	h := &Harvester{
		fetcher: fetcher,
		out:     out,
		cfg:     cfg,
		sm:      NewStateMachine(),
		// Sized well past any realistic single run.
		seen:   bloom.NewWithEstimates(500000, 0.001),
		batch:  flatten.NewDataset(cfg.Flatten),
		cursor: cfg.DateAfter,
		end:    cfg.DateBefore,
	}
	h.sm.OnTransition(func(from, to State) {
		log.Printf("[Harvester] State transition: %s -> %s", from, to)
	})
	return h
}

// State returns the driver's current state.
func (h *Harvester) State() State {
	return h.sm.Current()
}

// Cursor returns the last cursor value; after a failure it marks where a
// manual resume should restart.
func (h *Harvester) Cursor() time.Time {
	return h.cursor
}

// Requests returns the number of fetch calls issued.
func (h *Harvester) Requests() int64 {
	return h.requests
}

// Matches returns the number of matches flattened.
func (h *Harvester) Matches() int64 {
	return h.matches
}

// Run fetches the configured date range to exhaustion. It returns nil with
// the driver in DONE after all tables are flushed, or an error with the
// driver in FAILED; the cursor then points at the last safe resume point.
func (h *Harvester) Run(ctx context.Context) error {
	if err := h.sm.TransitionTo(StateFetching); err != nil {
		return err
	}

	pages := 0
	for {
		// Both stop conditions are checked before every request; a request
		// whose start cursor has reached the end bound is never issued.
		if !h.cursor.Before(h.end) {
			return h.finish()
		}
		if err := ctx.Err(); err != nil {
			return h.fail(err)
		}

		page, err := h.fetchPage(ctx)
		if errors.Is(err, ltd2.ErrNotFound) {
			// The query ran past the available data.
			return h.finish()
		}
		if err != nil {
			return h.fail(err)
		}
		if len(page) == 0 {
			return h.finish()
		}

		if err := h.sm.TransitionTo(StateAccumulating); err != nil {
			return h.fail(err)
		}

		var last time.Time
		for i := range page {
			g := &page[i]
			// Rolling the date cursor forward refetches matches at the
			// boundary timestamp; drop anything already flattened.
			if h.seen.TestString(g.ID) {
				continue
			}
			h.seen.AddString(g.ID)

			if err := flatten.Flatten(g, h.batch, h.cfg.Flatten); err != nil {
				return h.fail(err)
			}
			h.matches++

			if t, perr := ltd2.ParseGameDate(g.Date); perr == nil {
				last = t
			}
		}
		pages++

		if len(page) < h.cfg.Limit {
			return h.finish()
		}
		if !last.IsZero() && !last.Before(h.end) {
			return h.finish()
		}

		if pages%h.cfg.FlushInterval == 0 {
			if err := h.flush(); err != nil {
				return h.fail(err)
			}
		}

		h.offset += h.cfg.Limit
		if h.offset >= ltd2.MaxOffset && !last.IsZero() {
			// The API stops serving past this offset; move the date window
			// instead.
			log.Printf("[Harvester] Offset cap reached, advancing cursor to %s", last.Format(time.RFC3339))
			h.offset = 0
			h.cursor = last
		}

		if err := h.sm.TransitionTo(StateFetching); err != nil {
			return h.fail(err)
		}
		if h.cfg.RequestDelay > 0 {
			if err := sleepCtx(ctx, h.cfg.RequestDelay); err != nil {
				return h.fail(err)
			}
		}
	}
}

// fetchPage issues one request with the driver's retry policy: a
// rate-limited request is retried exactly once after a backoff,
// connection-level failures are retried a bounded number of times, fatal
// errors return immediately. The request itself is identical on every
// attempt.
func (h *Harvester) fetchPage(ctx context.Context) ([]ltd2.Game, error) {
	req := ltd2.PageRequest{
		Limit:          h.cfg.Limit,
		Offset:         h.offset,
		DateAfter:      h.cursor,
		DateBefore:     h.end,
		QueueType:      h.cfg.QueueType,
		Version:        h.cfg.Version,
		IncludeDetails: h.cfg.Flatten.IncludeDetails,
	}

	retriedRateLimit := false
	netRetries := 0
	for {
		h.requests++
		page, err := h.fetcher.FetchPage(ctx, req)
		if err == nil {
			return page, nil
		}

		var rl *ltd2.RateLimitError
		switch {
		case errors.As(err, &rl):
			if retriedRateLimit {
				return nil, err
			}
			retriedRateLimit = true
			wait := rl.RetryAfter
			if wait <= 0 {
				wait = h.cfg.RateLimitBackoff
			}
			log.Printf("[Harvester] Rate limited, retrying in %s...", wait)
			if serr := sleepCtx(ctx, wait); serr != nil {
				return nil, serr
			}

		case ltd2.IsFatal(err) || errors.Is(err, ltd2.ErrNotFound):
			return nil, err

		default:
			netRetries++
			if netRetries > h.cfg.MaxNetworkRetries {
				return nil, fmt.Errorf("giving up after %d retries: %w", h.cfg.MaxNetworkRetries, err)
			}
			log.Printf("[Harvester] Request failed (retry %d/%d): %v", netRetries, h.cfg.MaxNetworkRetries, err)
			if serr := sleepCtx(ctx, h.cfg.NetworkRetryDelay); serr != nil {
				return nil, serr
			}
		}
	}
}

// flush hands the accumulated batch to the sink and clears it.
func (h *Harvester) flush() error {
	if h.batch.Len() == 0 {
		return nil
	}
	if err := h.out.Append(h.batch); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}
	h.batch.Reset()
	return nil
}

func (h *Harvester) finish() error {
	if err := h.flush(); err != nil {
		return h.fail(err)
	}
	if err := h.sm.TransitionTo(StateDone); err != nil {
		return err
	}
	log.Printf("[Harvester] Done: %d matches in %d requests, cursor %s",
		h.matches, h.requests, h.cursor.Format(time.RFC3339))
	return nil
}

func (h *Harvester) fail(cause error) error {
	// Best-effort flush so the partial output survives.
	if ferr := h.flush(); ferr != nil {
		log.Printf("[Harvester] Failed to flush partial batch: %v", ferr)
	}
	h.sm.TransitionTo(StateFailed)
	return fmt.Errorf("harvest failed at cursor %s (offset %d): %w",
		h.cursor.Format(time.RFC3339), h.offset, cause)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
