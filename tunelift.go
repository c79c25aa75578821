// Package tunelift assembles the region-unblocking rewrite engine: wire
// codecs, track resolution, provider orchestration and the interception
// pipeline, behind a single chainable façade.
package tunelift

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tunelift/tunelift/errs"
	"github.com/tunelift/tunelift/internal/cache"
	"github.com/tunelift/tunelift/internal/logger"
	"github.com/tunelift/tunelift/match"
	"github.com/tunelift/tunelift/netease/api"
	"github.com/tunelift/tunelift/pipeline"
	"github.com/tunelift/tunelift/pkg/client"
	"github.com/tunelift/tunelift/provider"
	"github.com/tunelift/tunelift/types"
)

// Engine is the high-level entry point. Configure it with the chainable
// setters, register providers, then serve Handler or call Match directly.
// The first use freezes the configuration.
type Engine struct {
	registry *provider.Registry
	httpc    *client.Client
	log      *logger.ComponentLogger

	matchOrder   []string
	timeout      time.Duration
	minBitrate   int
	selectMaxBR  bool
	followSource bool
	vip, svip    bool
	endpoint     string
	noCache      bool

	once    sync.Once
	cache   *cache.Cache
	matcher *match.Matcher
	pipe    *pipeline.Pipeline
}

// New creates an engine with default options and an empty provider registry.
func New() *Engine {
	return &Engine{
		registry: provider.NewRegistry(),
		httpc:    client.New(),
		log:      logger.WithComponent(logger.ComponentApp),
	}
}

// WithHTTPClient sets the client used for upstream forwarding, provider
// queries and validation probes.
func (e *Engine) WithHTTPClient(c *client.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

// WithMatchOrder sets the provider priority list.
func (e *Engine) WithMatchOrder(order []string) *Engine {
	e.matchOrder = order
	return e
}

// WithProviderTimeout sets the per-provider deadline.
func (e *Engine) WithProviderTimeout(d time.Duration) *Engine {
	e.timeout = d
	return e
}

// WithMinBitrate sets the bitrate floor for upstream track URLs.
func (e *Engine) WithMinBitrate(br int) *Engine {
	e.minBitrate = br
	return e
}

// WithSelectMaxBitrate prefers higher-bitrate candidates over closer matches.
func (e *Engine) WithSelectMaxBitrate(on bool) *Engine {
	e.selectMaxBR = on
	return e
}

// WithFollowSourceOrder breaks score ties by provider-list position.
func (e *Engine) WithFollowSourceOrder(on bool) *Engine {
	e.followSource = on
	return e
}

// WithLocalVIP enables VIP membership simulation.
func (e *Engine) WithLocalVIP(vip, svip bool) *Engine {
	e.vip, e.svip = vip, svip
	return e
}

// WithEndpoint wraps substitute URLs for an external relay service.
func (e *Engine) WithEndpoint(endpoint string) *Engine {
	e.endpoint = endpoint
	return e
}

// WithNoCache bypasses the track identity cache.
func (e *Engine) WithNoCache(on bool) *Engine {
	e.noCache = on
	return e
}

// RegisterProvider adds an audio source to the registry.
func (e *Engine) RegisterProvider(p provider.Provider) *Engine {
	e.registry.Register(p)
	return e
}

// RegisterSource adds a REST audio source by name and base URL.
func (e *Engine) RegisterSource(name, baseURL string) *Engine {
	return e.RegisterProvider(provider.NewREST(name, baseURL, e.httpc))
}

// build wires the component graph once.
func (e *Engine) build() {
	e.once.Do(func() {
		e.cache = cache.New(e.noCache)
		resolver := api.NewResolver(e.httpc, e.cache)
		e.matcher = match.New(resolver, e.registry, e.httpc).
			WithOrder(e.matchOrder).
			WithTimeout(e.timeout).
			WithSelectMaxBitrate(e.selectMaxBR).
			WithFollowSourceOrder(e.followSource)
		e.pipe = pipeline.New(e.matcher, e.httpc).
			WithMinBitrate(e.minBitrate).
			WithLocalVIP(e.vip, e.svip).
			WithEndpoint(e.endpoint)
	})
}

// Match resolves a track id to a substitute candidate, bypassing the HTTP
// surface. Useful for library callers and diagnostics.
func (e *Engine) Match(ctx context.Context, id string) (types.Candidate, error) {
	e.build()
	return e.matcher.Match(ctx, id, nil)
}

// SweepCache drops expired track identities. The engine runs no background
// timer; hosts call this on their own schedule.
func (e *Engine) SweepCache() {
	e.build()
	e.cache.Sweep()
}

// Handler returns the interception proxy handler: requests for vendor hosts
// are decoded, rewritten and forwarded, and their responses mutated; anything
// else is forwarded untouched.
func (e *Engine) Handler() http.Handler {
	e.build()
	return http.HandlerFunc(e.serveHTTP)
}

func (e *Engine) serveHTTP(w http.ResponseWriter, req *http.Request) {
	env, err := e.pipe.InterceptRequest(req)
	if err != nil {
		// Decode failures forward the exchange untouched. Malformed envelopes
		// are a client-side concern, not an engine fault.
		if errs.IsDecodeError(err) {
			e.log.Debug("request decode failed", map[string]any{"path": req.URL.Path, "err": err.Error()})
		} else {
			e.log.Warn("request intercept failed", map[string]any{"path": req.URL.Path, "err": err.Error()})
		}
		env = nil
	}

	resp, err := e.forward(req)
	if err != nil {
		e.log.Error("upstream request failed", map[string]any{"host": req.Host, "err": err.Error()})
		http.Error(w, "upstream unreachable", http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if env != nil {
		if err := e.pipe.InterceptResponse(req.Context(), env, resp); err != nil {
			e.log.Warn("response mutation failed", map[string]any{"path": env.Path, "err": err.Error()})
		}
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// forward replays the inbound request against its original destination.
func (e *Engine) forward(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.RequestURI = ""
	if out.URL.Scheme == "" {
		out.URL.Scheme = "http"
		if req.TLS != nil {
			out.URL.Scheme = "https"
		}
	}
	if out.URL.Host == "" {
		out.URL.Host = req.Host
	}
	return e.httpc.Do(out)
}
