package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirkobrombin/go-smallcache/v1/cache"
)

var (
	concurrency = flag.Int("c", 50, "Number of concurrent clients")
	requests    = flag.Int("n", 100000, "Total number of requests")
	keys        = flag.Int("k", 10000, "Number of distinct keys")
	maxEntries  = flag.Int("max", 1000, "Maximum number of entries kept by the cache")
	ttl         = flag.Duration("ttl", time.Second, "Default TTL of entries")
	writeRatio  = flag.Int("w", 10, "Percentage of requests that are writes")
	strategy    = flag.String("s", "insertion", "Eviction strategy: insertion or lfu")
)

// validateFlags rejects settings that would leave the run with no requests.
func validateFlags(concurrency, requests, keys int) error {
	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if requests < concurrency {
		return fmt.Errorf("requests (%d) must be at least concurrency (%d)", requests, concurrency)
	}
	if keys <= 0 {
		return fmt.Errorf("keys must be positive, got %d", keys)
	}
	return nil
}

func main() {
	flag.Parse()
	if err := validateFlags(*concurrency, *requests, *keys); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	log.Printf("Starting benchmark: %d requests, %d concurrency, %d keys, %d%% writes, strategy %s",
		*requests, *concurrency, *keys, *writeRatio, *strategy)

	s := cache.InsertionStrategy
	if *strategy == "lfu" {
		s = cache.LFUStrategy
	}
	c := cache.New[int](
		cache.WithStrategy[int](s),
		cache.WithCapacity[int](*maxEntries),
		cache.WithTTL[int](*ttl),
	)
	if closer, ok := c.(interface{ Close() }); ok {
		defer closer.Close()
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	var ops, hits, errorsCount int64

	start := time.Now()

	reqsPerWorker := *requests / *concurrency

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < reqsPerWorker; j++ {
				n := (worker*reqsPerWorker + j) % *keys
				key := strconv.Itoa(n)
				var err error
				if j%100 < *writeRatio {
					err = c.Set(ctx, key, n, cache.DefaultExpiration)
				} else {
					var ok bool
					_, ok, err = c.Get(ctx, key)
					if ok {
						atomic.AddInt64(&hits, 1)
					}
				}
				if err != nil {
					atomic.AddInt64(&errorsCount, 1)
				}
				atomic.AddInt64(&ops, 1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	throughput := float64(ops) / elapsed.Seconds()
	avgLatency := elapsed.Seconds() / float64(ops) * 1e9 // ns

	log.Printf("Finished in %v", elapsed)
	log.Printf("Throughput: %.2f req/s", throughput)
	log.Printf("Avg Latency: %.2f ns", avgLatency)
	log.Printf("Hits: %d", hits)
	if im, ok := c.(*cache.InMemoryCache[int]); ok {
		st := im.Stats()
		log.Printf("Size: %d, expired: %d, evicted: %d, passes: %d (aborted %d)",
			st.Size, st.Expired, st.Evicted, st.Passes, st.AbortedPasses)
	}
	if errorsCount > 0 {
		log.Printf("Errors: %d", errorsCount)
	}
}
