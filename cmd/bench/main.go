// Command bench runs a synthetic load/read workload against the cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/IvanBrykalov/asynccache/cache"
	pmet "github.com/IvanBrykalov/asynccache/metrics/prom"
	"github.com/IvanBrykalov/asynccache/policy/twoq"
)

var errInjected = errors.New("injected failure")

func main() {
	// ---- Flags ----
	var (
		capacity   = flag.Int("cap", 100_000, "cache capacity (entries)")
		policy     = flag.String("policy", "lru", "eviction policy: lru | 2q")
		maxLoads   = flag.Int("max_loads", 0, "max concurrent resolvers (0=unlimited)")
		workers    = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration   = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct    = flag.Int("reads", 80, "read percentage [0..100]")
		cancelPct  = flag.Int("cancels", 1, "cancel percentage [0..100], taken from the non-read share")
		latency    = flag.Duration("latency", time.Millisecond, "mean resolver latency")
		failPct    = flag.Int("fail", 2, "resolver failure percentage [0..100]")
		keys       = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS      = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV      = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload    = flag.Int("preload", 0, "preload entries (0 = cap/2)")
		verbose    = flag.Bool("v", false, "debug logging")
		pprofAddr  = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info().Str("addr", *pprofAddr).Msg("pprof: serving")
			logger.Error().Err(http.ListenAndServe(*pprofAddr, nil)).Msg("pprof server stopped")
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "asynccache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info().Str("addr", *metricAddr).Msg("metrics: serving")
		logger.Error().Err(http.ListenAndServe(*metricAddr, nil)).Msg("metrics server stopped")
	}()

	// ---- Resolver with injected latency and failures ----
	// Callers pass (latency time.Duration, fail bool) as resolver args.
	resolve := func(ctx context.Context, k string, args ...any) (string, error) {
		var d time.Duration
		fail := false
		if len(args) == 2 {
			d, _ = args[0].(time.Duration)
			fail, _ = args[1].(bool)
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if fail {
			return "", errInjected
		}
		return "v:" + k, nil
	}

	// ---- Build cache ----
	opt := cache.Options[string, string]{
		Capacity:           *capacity,
		MaxConcurrentLoads: *maxLoads,
		Metrics:            metrics,
		Logger:             &logger,
	}
	switch *policy {
	case "lru":
		// nil => LRU by default
	case "2q":
		opt.Policy = twoq.New[string](*capacity/4, *capacity/2)
	default:
		logger.Fatal().Str("policy", *policy).Msg("unknown policy (use lru or 2q)")
	}
	c, err := cache.New(resolve, opt)
	if err != nil {
		logger.Fatal().Err(err).Msg("build cache")
	}
	defer func() { _ = c.Close() }()

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = *capacity / 2
	}
	var pre sync.WaitGroup
	for i := 0; i < pl; i++ {
		pre.Add(1)
		ch := c.LoadAsync("k:" + strconv.Itoa(i))
		go func() { defer pre.Done(); <-ch }()
	}
	pre.Wait()
	logger.Info().Int("entries", c.Len()).Msg("preloaded")

	// ---- Snapshot flags for goroutines ----
	meanLat := *latency
	failPctVal := *failPct
	readPctVal := *readPct
	cancelPctVal := *cancelPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, loads, cancels, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for ctx.Err() == nil {
				atomic.AddUint64(&total, 1)
				p := int(localR.Int31n(100))
				switch {
				case p < readPctVal:
					atomic.AddUint64(&reads, 1)
					if c.Read(keyByZipf()) != nil {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				case p < readPctVal+cancelPctVal:
					atomic.AddUint64(&cancels, 1)
					c.Cancel(keyByZipf())
				default:
					atomic.AddUint64(&loads, 1)
					d := time.Duration(localR.ExpFloat64() * float64(meanLat))
					fail := int(localR.Int31n(100)) < failPctVal
					_, _ = c.Load(ctx, keyByZipf(), d, fail)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	hitsN := atomic.LoadUint64(&hits)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}
	st := c.Stats()

	fmt.Printf("policy=%s cap=%d workers=%d keys=%d dur=%v seed=%d\n",
		*policy, *capacity, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  loads=%d  cancels=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, atomic.LoadUint64(&loads), atomic.LoadUint64(&cancels))
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, atomic.LoadUint64(&misses), hitRate)
	fmt.Printf("flights=%d joins=%d ok=%d failed=%d cancelled=%d evictions=%d\n",
		st.Loads, st.Joins, st.Successes, st.Failures, st.Cancels, st.Evictions)
	fmt.Printf("Len()=%d\n", c.Len())
}
