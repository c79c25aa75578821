// Package match fans a track identity out to every configured provider,
// scores the answers and validates them in order until one serves audio.
package match

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tunelift/tunelift/errs"
	"github.com/tunelift/tunelift/internal/logger"
	"github.com/tunelift/tunelift/pkg/client"
	"github.com/tunelift/tunelift/provider"
	"github.com/tunelift/tunelift/types"
)

// DefaultProviderTimeout bounds each provider query independently.
const DefaultProviderTimeout = 8 * time.Second

// Resolver yields canonical track identities. *api.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, id string, inline map[string]any) (types.Track, error)
}

// Matcher orchestrates concurrent provider queries for one track.
type Matcher struct {
	resolver Resolver
	registry *provider.Registry
	httpc    *client.Client
	log      *logger.ComponentLogger

	order          []string
	timeout        time.Duration
	selectMaxBR    bool
	followSrcOrder bool
}

// New creates a matcher over the given resolver and provider registry.
func New(resolver Resolver, registry *provider.Registry, httpc *client.Client) *Matcher {
	if httpc == nil {
		httpc = client.New()
	}
	return &Matcher{
		resolver: resolver,
		registry: registry,
		httpc:    httpc,
		log:      logger.WithComponent(logger.ComponentMatch),
		timeout:  DefaultProviderTimeout,
	}
}

// WithOrder sets the provider priority list. Empty falls back to the default.
func (m *Matcher) WithOrder(order []string) *Matcher {
	m.order = order
	return m
}

// WithTimeout sets the per-provider deadline.
func (m *Matcher) WithTimeout(d time.Duration) *Matcher {
	if d > 0 {
		m.timeout = d
	}
	return m
}

// WithSelectMaxBitrate prefers higher-bitrate candidates, using score only as
// a tiebreak.
func (m *Matcher) WithSelectMaxBitrate(on bool) *Matcher {
	m.selectMaxBR = on
	return m
}

// WithFollowSourceOrder breaks score ties by the provider-list position.
func (m *Matcher) WithFollowSourceOrder(on bool) *Matcher {
	m.followSrcOrder = on
	return m
}

type scored struct {
	cand  types.Candidate
	score float64
	pos   int
}

// Match resolves the track identity, queries every listed provider
// concurrently, and returns the winning candidate. It fails with
// errs.ErrNoCandidates when every provider came up empty.
func (m *Matcher) Match(ctx context.Context, id string, inline map[string]any) (types.Candidate, error) {
	track, err := m.resolver.Resolve(ctx, id, inline)
	if err != nil {
		return types.Candidate{}, err
	}

	providers := m.listProviders()
	if len(providers) == 0 {
		return types.Candidate{}, errs.ErrNoCandidates
	}

	results := m.fanOut(ctx, track, providers)

	candidates := make([]scored, 0, len(results))
	for pos, res := range results {
		if !res.OK() {
			m.log.Debug("provider failed", map[string]any{"source": res.Source, "err": res.Err.Error()})
			continue
		}
		candidates = append(candidates, scored{cand: res.Candidate, score: score(track, res.Candidate), pos: pos})
	}
	if len(candidates) == 0 {
		return types.Candidate{}, errs.ErrNoCandidates
	}

	m.sortCandidates(candidates)

	for _, sc := range candidates {
		if ctx.Err() != nil {
			break
		}
		if m.validate(ctx, sc.cand) {
			m.log.Debug("candidate validated", map[string]any{"source": sc.cand.Source, "score": sc.score})
			return sc.cand, nil
		}
		m.log.Debug("candidate rejected by probe", map[string]any{"source": sc.cand.Source})
	}
	// Best-effort fallback: validation preferences never fail the match.
	return candidates[0].cand, nil
}

// listProviders resolves the configured order against the registry.
func (m *Matcher) listProviders() []provider.Provider {
	order := m.order
	if len(order) == 0 {
		order = provider.DefaultOrder
	}
	providers := make([]provider.Provider, 0, len(order))
	for _, name := range order {
		if p, ok := m.registry.Get(name); ok {
			providers = append(providers, p)
		}
	}
	return providers
}

// fanOut queries every provider concurrently under an independent deadline.
// The call returns only after each provider answered or timed out; scoring
// needs the full set, so there is no first-success short circuit.
func (m *Matcher) fanOut(ctx context.Context, track types.Track, providers []provider.Provider) []provider.Result {
	results := make([]provider.Result, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			cand, err := p.Check(cctx, track)
			if errors.Is(err, context.DeadlineExceeded) {
				err = errs.ErrProviderTimeout
			}
			results[i] = provider.Result{Source: p.Name(), Candidate: cand, Err: err}
		}(i, p)
	}
	wg.Wait()
	return results
}

// sortCandidates orders candidates per the configured ranking mode.
func (m *Matcher) sortCandidates(candidates []scored) {
	switch {
	case m.selectMaxBR:
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].cand.BitRate != candidates[j].cand.BitRate {
				return candidates[i].cand.BitRate > candidates[j].cand.BitRate
			}
			return candidates[i].score < candidates[j].score
		})
	case m.followSrcOrder:
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score < candidates[j].score
			}
			return candidates[i].pos < candidates[j].pos
		})
	default:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score < candidates[j].score
		})
	}
}
