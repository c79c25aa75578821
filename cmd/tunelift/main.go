package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/tunelift/tunelift"
	"github.com/tunelift/tunelift/internal/logger"
	"github.com/tunelift/tunelift/pkg/client"
)

const defaultSweepInterval = 10 * time.Minute

func main() {
	// Optional .env for local runs; missing files are fine.
	_ = godotenv.Load()

	var (
		flagAddr         string
		flagLogLevel     string
		flagLogColor     bool
		flagMinBitrate   int
		flagMatchOrder   string
		flagMaxBitrate   bool
		flagSourceOrder  bool
		flagVIP          bool
		flagSVIP         bool
		flagEndpoint     string
		flagNoCache      bool
		flagTimeout      time.Duration
		flagHTTPTimeout  time.Duration
		flagRetries      int
		flagProxy        string
		flagSweep        time.Duration
		flagSources      []string
	)

	flag.StringVar(&flagAddr, "addr", envOr("TUNELIFT_ADDR", ":8080"), "Listen address")
	flag.StringVar(&flagLogLevel, "log-level", envOr("TUNELIFT_LOG_LEVEL", "info"), "Log level (trace, debug, info, warn, error)")
	flag.BoolVar(&flagLogColor, "log-color", false, "Colorize log output")
	flag.IntVar(&flagMinBitrate, "min-bitrate", 0, "Replace upstream URLs below this bitrate")
	flag.StringVar(&flagMatchOrder, "match-order", envOr("TUNELIFT_MATCH_ORDER", ""), "Comma-separated provider priority list")
	flag.BoolVar(&flagMaxBitrate, "select-max-bitrate", false, "Prefer the highest-bitrate candidate")
	flag.BoolVar(&flagSourceOrder, "follow-source-order", false, "Break score ties by provider-list position")
	flag.BoolVar(&flagVIP, "vip", false, "Simulate an active VIP membership")
	flag.BoolVar(&flagSVIP, "svip", false, "Simulate an active super-VIP membership (implies -vip)")
	flag.StringVar(&flagEndpoint, "endpoint", envOr("TUNELIFT_ENDPOINT", ""), "Relay endpoint wrapping substitute URLs")
	flag.BoolVar(&flagNoCache, "no-cache", false, "Bypass the track identity cache")
	flag.DurationVar(&flagTimeout, "provider-timeout", 8*time.Second, "Per-provider deadline")
	flag.DurationVar(&flagHTTPTimeout, "http-timeout", 30*time.Second, "HTTP timeout for upstream and provider calls")
	flag.IntVar(&flagRetries, "retries", 3, "HTTP retries for transient errors")
	flag.StringVar(&flagProxy, "proxy", "", "Proxy URL for outbound traffic")
	flag.DurationVar(&flagSweep, "sweep-interval", defaultSweepInterval, "Cache sweep interval (0 disables)")
	flag.Func("source", "Audio source as name=baseURL (repeatable)", func(v string) error {
		if !strings.Contains(v, "=") {
			return fmt.Errorf("want name=baseURL, got %q", v)
		}
		flagSources = append(flagSources, v)
		return nil
	})

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if env := os.Getenv("TUNELIFT_SOURCES"); env != "" && len(flagSources) == 0 {
		flagSources = strings.Split(env, ",")
	}

	configureLogging(flagLogLevel, flagLogColor)

	c := client.NewWith(client.Config{Timeout: flagHTTPTimeout, Retries: flagRetries, ProxyURL: flagProxy})
	engine := tunelift.New().
		WithHTTPClient(c).
		WithProviderTimeout(flagTimeout).
		WithMinBitrate(flagMinBitrate).
		WithSelectMaxBitrate(flagMaxBitrate).
		WithFollowSourceOrder(flagSourceOrder).
		WithLocalVIP(flagVIP, flagSVIP).
		WithEndpoint(flagEndpoint).
		WithNoCache(flagNoCache)

	if flagMatchOrder != "" {
		engine = engine.WithMatchOrder(splitCSV(flagMatchOrder))
	}
	for _, s := range flagSources {
		name, baseURL, ok := strings.Cut(strings.TrimSpace(s), "=")
		if !ok || name == "" || baseURL == "" {
			fmt.Fprintf(os.Stderr, "Invalid source %q, want name=baseURL\n", s)
			os.Exit(2)
		}
		engine = engine.RegisterSource(name, baseURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagSweep > 0 {
		go sweepLoop(ctx, engine, flagSweep)
	}

	server := &http.Server{Addr: flagAddr, Handler: engine.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	color.Cyan("tunelift listening on %s", flagAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		os.Exit(1)
	}
}

func configureLogging(level string, colorized bool) {
	log := logger.GetGlobalLogger()
	log.SetLevel(logger.ParseLevel(level))
	if colorized {
		log.SetFormat(logger.FormatColor)
	}
	if logger.ParseLevel(level) <= logger.DEBUG {
		for _, c := range []logger.Component{
			logger.ComponentResolver, logger.ComponentProvider,
			logger.ComponentCrypto, logger.ComponentClient, logger.ComponentCache,
		} {
			log.EnableComponent(c)
		}
	}
}

func sweepLoop(ctx context.Context, engine *tunelift.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.SweepCache()
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
