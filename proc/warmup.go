package proc

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/leeineian/soundtrack/ost"
	"github.com/leeineian/soundtrack/sys"
)

// Warmup resolves the metadata of tracks that were loaded from a URL list
// with nothing but their link.
type Warmup struct {
	catalog  *ost.Catalog
	resolver ost.Resolver
	workers  int
	limiter  *rate.Limiter
	dir      string

	done chan struct{}
}

// NewWarmup persists the catalog into dir after a pass; an empty dir skips
// that step.
func NewWarmup(catalog *ost.Catalog, resolver ost.Resolver, cfg sys.WarmupConfig, dir string) *Warmup {
	workers := max(cfg.Workers, 1)
	return &Warmup{
		catalog:  catalog,
		resolver: resolver,
		workers:  workers,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.Burst, 1)),
		dir:      dir,
		done:     make(chan struct{}),
	}
}

// Start is the daemon entry point. It declines to run when every track is
// already resolved.
func (w *Warmup) Start(ctx context.Context) (bool, func(), func()) {
	if len(w.catalog.Pending()) == 0 {
		return false, nil, nil
	}
	runCtx, cancel := context.WithCancel(ctx)

	run := func() {
		defer close(w.done)
		w.Run(runCtx)
	}
	shutdown := func() {
		cancel()
		<-w.done
	}
	return true, run, shutdown
}

// Run resolves every pending track once and returns how many succeeded.
func (w *Warmup) Run(ctx context.Context) (resolved, total int) {
	pending := w.catalog.Pending()
	total = len(pending)
	if total == 0 {
		return 0, 0
	}
	sys.LogCatalog(sys.MsgCatalogWarmupStart, total)

	var ok atomic.Int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, w.workers)

	for _, e := range pending {
		if err := w.limiter.Wait(ctx); err != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(e ost.Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			md, err := w.resolver.Resolve(ctx, e.Track.URL)
			if err != nil {
				sys.LogCatalog(sys.MsgCatalogWarmupFail, e.ID, e.Track.URL, err)
				return
			}
			if w.catalog.SetMetadata(e.ID.Letter, e.Track.URL, md) {
				ok.Add(1)
			}
		}(e)
	}
	wg.Wait()

	resolved = int(ok.Load())
	sys.LogCatalog(sys.MsgCatalogWarmupDone, resolved, total)

	if resolved > 0 && w.dir != "" {
		path, err := w.catalog.Persist(w.dir)
		if err != nil {
			sys.LogCatalog(sys.MsgCatalogSaveFail, err)
		} else {
			sys.LogCatalog(sys.MsgCatalogSaved, path)
		}
	}
	return resolved, total
}
