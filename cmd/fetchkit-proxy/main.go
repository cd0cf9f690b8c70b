// fetchkit-proxy is a small caching proxy built on the fetchkit dispatcher.
// It demonstrates wiring an HTTP-backed adapter into the core: the transport
// lives here in the binary, the library stays transport-agnostic.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fetchkit/fetchkit/pkg/adapter"
	"github.com/fetchkit/fetchkit/pkg/cache"
	"github.com/fetchkit/fetchkit/pkg/dispatcher"
	"github.com/fetchkit/fetchkit/pkg/logging"
	"github.com/fetchkit/fetchkit/pkg/request"
)

func main() {
	// Configuration from environment
	port := getEnv("PORT", "8080")
	upstream := getEnv("UPSTREAM_URL", "https://httpbin.org")
	redisURL := getEnv("REDIS_URL", "")
	cacheTime := getDurationEnv("CACHE_TIME", 60*time.Second)

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") != "",
		Output: os.Stderr,
	})

	// Optional Redis cache backing
	var backing cache.Backing
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
		}
		backing = cache.NewRedisBacking(redisClient)
		log.Info().Str("addr", redisURL).Msg("Using Redis cache backing")
	}

	cfg := dispatcher.DefaultConfig(httpAdapter{client: &http.Client{Timeout: 30 * time.Second}})
	cfg.Cache = cache.NewStore(backing, nil)
	disp, err := dispatcher.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create dispatcher")
	}
	defer disp.Stop()

	http.HandleFunc("/health", healthHandler)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/proxy/", proxyHandler(disp, upstream, cacheTime))

	addr := ":" + port
	log.Info().Str("addr", addr).Str("upstream", upstream).Msg("Starting fetchkit proxy")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// proxyHandler serves GET requests through the dispatcher, answering from
// cache while the entry is fresh.
func proxyHandler(disp *dispatcher.Dispatcher, upstream string, cacheTime time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, "/proxy")

		desc := &request.Descriptor{
			Method:      http.MethodGet,
			BaseURL:     upstream,
			Endpoint:    endpoint,
			CacheTime:   cacheTime,
			Deduplicate: true,
			Retry:       2,
			RetryTime:   time.Second,
			Timeout:     15 * time.Second,
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		cacheKey := request.CacheKey(desc, false)
		if entry, ok := disp.Cache().Get(ctx, cacheKey); ok && !entry.IsStale(cacheTime) && entry.Response.Success {
			w.Header().Set("X-Fetchkit-Cache", "hit")
			w.WriteHeader(entry.Response.Status)
			w.Write(entry.Response.Data)
			return
		}

		ev, err := disp.Submit(ctx, desc)
		if err != nil {
			http.Error(w, fmt.Sprintf("proxy request failed: %v", err), http.StatusGatewayTimeout)
			return
		}

		resp := ev.Response
		if !resp.Success {
			http.Error(w, resp.Error.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("X-Fetchkit-Cache", "miss")
		w.WriteHeader(resp.Status)
		w.Write(resp.Data)
	}
}

// httpAdapter performs descriptors over net/http. Failures are reported
// through the envelope per the adapter contract.
type httpAdapter struct {
	client *http.Client
}

func (a httpAdapter) Execute(ctx context.Context, d *request.Descriptor) request.Response {
	url := d.BaseURL + d.ResolvedEndpoint()

	req, err := http.NewRequestWithContext(ctx, d.Method, url, strings.NewReader(string(d.Data)))
	if err != nil {
		return request.NewFailure(request.NewTransportFailure(err), 0)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return request.NewFailure(err, 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return request.NewFailure(request.NewTransportFailure(err), resp.StatusCode)
	}
	if d.OnDownloadProgress != nil {
		d.OnDownloadProgress(request.Progress{Loaded: int64(len(body)), Total: resp.ContentLength})
	}

	if resp.StatusCode >= 400 {
		failure := request.NewTransportFailure(fmt.Errorf("upstream status %d", resp.StatusCode))
		return request.NewFailure(failure, resp.StatusCode)
	}

	out := request.NewSuccess(body, resp.StatusCode)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Extra["content-type"] = ct
	}
	return out
}

var _ adapter.Adapter = httpAdapter{}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
