// Package refresh drives the bulk catalog synchronization: clear, fetch
// categories per kind, fetch items per category, and publish progress the UI
// can poll. A run is cooperative: stop requests are honored at checkpoints
// between network fetches, never mid-request.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/iptvdeck/iptv-deck/internal/cache"
	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/metrics"
	"github.com/iptvdeck/iptv-deck/internal/visibility"
)

// ErrAlreadyRunning is returned when Refresh is called while a run is active.
var ErrAlreadyRunning = errors.New("refresh already running")

// CatalogClient is the remote side the orchestrator fetches from.
type CatalogClient interface {
	ListCategories(ctx context.Context, kind catalog.Kind) ([]catalog.Category, error)
	ListItems(ctx context.Context, kind catalog.Kind, categoryID int) ([]catalog.Item, error)
}

// Progress percentages for the category phases. The item loop owns the
// remaining 15..100 range.
var categoryMilestones = map[catalog.Kind]int{
	catalog.KindLive:   5,
	catalog.KindMovie:  10,
	catalog.KindSeries: 15,
}

// Orchestrator runs bulk refreshes and lazy per-category loads against one
// client/cache pair.
type Orchestrator struct {
	Client     CatalogClient
	Cache      *cache.Store
	Visibility *visibility.Filter
	Live       *LiveState

	// Limiter paces category item fetches so a full refresh does not
	// hammer the provider. Nil disables pacing.
	Limiter *rate.Limiter

	// DoneLinger keeps the "Done" phase visible before the run goes
	// terminal, so a polling UI can show it.
	DoneLinger time.Duration
}

func New(client CatalogClient, store *cache.Store, vis *visibility.Filter, live *LiveState) *Orchestrator {
	return &Orchestrator{
		Client:     client,
		Cache:      store,
		Visibility: vis,
		Live:       live,
		Limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Refresh runs a full synchronization for one server. With visibleOnly set,
// item fetches are limited to the categories visible when the category phase
// finishes; visibility changes made mid-run do not alter the working set.
// The returned stats are read back from the cache and are also available via
// run.Status() afterwards.
func (o *Orchestrator) Refresh(ctx context.Context, run *Run, serverID string, visibleOnly bool) (catalog.RefreshStats, error) {
	if !run.begin() {
		return catalog.RefreshStats{}, ErrAlreadyRunning
	}
	start := time.Now()
	defer func() { metrics.RefreshDuration.Observe(time.Since(start).Seconds()) }()

	run.setProgress("Clearing cache", 0)
	o.Cache.Clear(serverID)
	o.Live.Reset()

	// Category phase: all three kinds, fixed order. A failure here fails
	// the whole run; without categories there is nothing to fetch.
	byKind := make(map[catalog.Kind][]catalog.Category, 3)
	for _, kind := range catalog.Kinds() {
		cats, err := o.Client.ListCategories(ctx, kind)
		if err != nil {
			if ctxDone(ctx, err) {
				return o.finalize(run, StateStopped, serverID), nil
			}
			log.Printf("refresh: fetch %s categories: %v", kind.Label(), err)
			return o.finalize(run, StateFailed, serverID), fmt.Errorf("fetch %s categories: %w", kind.Label(), err)
		}
		o.Cache.SetCategories(serverID, kind, cats)
		o.Live.SetCategories(kind, cats)
		byKind[kind] = cats
		run.setProgress(fmt.Sprintf("Loaded %s categories", kind.Label()), categoryMilestones[kind])
		if run.stopRequested() {
			return o.finalize(run, StateStopped, serverID), nil
		}
	}

	// Freeze the working set now. visibleOnly consults the filter exactly
	// once; toggles made while the item loop runs are ignored.
	type task struct {
		kind catalog.Kind
		cat  catalog.Category
	}
	var tasks []task
	for _, kind := range catalog.Kinds() {
		cats := byKind[kind]
		if visibleOnly {
			cats = o.Visibility.VisibleCategories(serverID, cats)
		}
		for _, c := range cats {
			tasks = append(tasks, task{kind: kind, cat: c})
		}
	}

	total := len(tasks)
	for i, tk := range tasks {
		if run.stopRequested() {
			return o.finalize(run, StateStopped, serverID), nil
		}
		percent := 15 + int(math.Round(80*float64(i)/float64(total)))
		run.setProgress(fmt.Sprintf("Fetching %s (%d/%d)", tk.kind.Label(), i+1, total), percent)

		if o.Limiter != nil && i > 0 {
			if err := o.Limiter.Wait(ctx); err != nil {
				return o.finalize(run, StateStopped, serverID), nil
			}
		}

		items, err := o.Client.ListItems(ctx, tk.kind, tk.cat.ID)
		if err != nil {
			if ctxDone(ctx, err) {
				return o.finalize(run, StateStopped, serverID), nil
			}
			// One bad category must not sink the run.
			log.Printf("refresh: fetch %s category %d (%s): %v; skipping", tk.kind.Label(), tk.cat.ID, tk.cat.Name, err)
			continue
		}
		o.Cache.SetItems(serverID, tk.kind, tk.cat.ID, items)
	}

	run.setProgress("Done", 100)
	stats := o.statsAndGauges(serverID)
	if o.DoneLinger > 0 {
		select {
		case <-time.After(o.DoneLinger):
		case <-ctx.Done():
		}
	}
	run.finish(StateCompleted, stats)
	metrics.RefreshRuns.WithLabelValues("completed").Inc()
	return stats, nil
}

// finalize settles a run in a non-completed terminal state. Stats still
// reflect whatever made it into the cache before the run ended.
func (o *Orchestrator) finalize(run *Run, state State, serverID string) catalog.RefreshStats {
	stats := o.statsAndGauges(serverID)
	run.finish(state, stats)
	metrics.RefreshRuns.WithLabelValues(string(state)).Inc()
	return stats
}

func (o *Orchestrator) statsAndGauges(serverID string) catalog.RefreshStats {
	stats := o.Cache.Stats(serverID)
	metrics.CategoriesCached.WithLabelValues(string(catalog.KindLive)).Set(float64(stats.LiveCategories))
	metrics.CategoriesCached.WithLabelValues(string(catalog.KindMovie)).Set(float64(stats.MovieCategories))
	metrics.CategoriesCached.WithLabelValues(string(catalog.KindSeries)).Set(float64(stats.SeriesCategories))
	metrics.ItemsCached.WithLabelValues(string(catalog.KindLive)).Set(float64(stats.Channels))
	metrics.ItemsCached.WithLabelValues(string(catalog.KindMovie)).Set(float64(stats.Movies))
	metrics.ItemsCached.WithLabelValues(string(catalog.KindSeries)).Set(float64(stats.Series))
	return stats
}

// ctxDone reports whether err is the caller's cancellation rather than a
// provider-side failure.
func ctxDone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
