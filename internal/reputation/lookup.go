package reputation

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Ashfaaq98/incident-triage/internal/metrics"
)

// LookupOptions configures the batched resolver.
type LookupOptions struct {
	// Workers caps concurrent oracle calls. Defaults to 4.
	Workers int
	// CallTimeout bounds each individual oracle call. Defaults to 10s.
	CallTimeout time.Duration
	// CacheTTL controls how long resolved scores stay cached. Defaults to 1h.
	CacheTTL time.Duration
	// Logger for degradation warnings (optional).
	Logger *log.Logger
}

// Lookup resolves batches of IP addresses through a Checker with
// deduplication, cross-batch caching and a bounded worker pool. A failing
// lookup degrades to score 0 and never fails the batch.
type Lookup struct {
	checker Checker
	cache   Cache
	opts    LookupOptions
}

// NewLookup wires a checker and cache into a batched resolver. The cache
// may be nil, in which case only in-batch deduplication applies.
func NewLookup(checker Checker, cache Cache, opts LookupOptions) *Lookup {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[reputation] ", log.LstdFlags)
	}
	return &Lookup{checker: checker, cache: cache, opts: opts}
}

// Resolve returns a score for every address in ips. Duplicates are resolved
// once; failures score 0. Cancelling ctx cancels in-flight oracle calls.
func (l *Lookup) Resolve(ctx context.Context, ips []string) map[string]float64 {
	scores := make(map[string]float64, len(ips))
	var misses []string
	for _, ip := range ips {
		if ip == "" {
			continue
		}
		if _, seen := scores[ip]; seen {
			continue
		}
		if l.cache != nil {
			if score, ok := l.cache.Get(ip); ok {
				metrics.ReputationCacheHits.Inc()
				scores[ip] = score
				continue
			}
		}
		scores[ip] = 0
		misses = append(misses, ip)
	}
	if len(misses) == 0 {
		return scores
	}

	type result struct {
		ip    string
		score float64
	}

	jobs := make(chan string)
	results := make(chan result, len(misses))

	var wg sync.WaitGroup
	workers := l.opts.Workers
	if workers > len(misses) {
		workers = len(misses)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range jobs {
				results <- result{ip: ip, score: l.checkOne(ctx, ip)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, ip := range misses {
			select {
			case jobs <- ip:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		scores[r.ip] = r.score
	}
	return scores
}

func (l *Lookup) checkOne(ctx context.Context, ip string) float64 {
	callCtx, cancel := context.WithTimeout(ctx, l.opts.CallTimeout)
	defer cancel()

	score, err := l.checker.Check(callCtx, ip)
	if err != nil {
		metrics.ReputationLookups.WithLabelValues("error").Inc()
		l.opts.Logger.Printf("reputation lookup failed for %s, scoring 0: %v", ip, err)
		return 0
	}
	metrics.ReputationLookups.WithLabelValues("ok").Inc()
	if l.cache != nil {
		l.cache.Set(ip, score, l.opts.CacheTTL)
	}
	return score
}
