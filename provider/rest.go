package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/tunelift/tunelift/internal/logger"
	"github.com/tunelift/tunelift/netease/crypto"
	"github.com/tunelift/tunelift/pkg/client"
	"github.com/tunelift/tunelift/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// REST adapts a generic JSON search endpoint to the Provider contract. The
// endpoint receives the track keyword and duration and answers with a single
// best match:
//
//	GET {base}/match?keyword=...&duration=...
//	{"url": "...", "br": 320000, "size": 123, "md5": "...", "type": "mp3",
//	 "title": "...", "artists": ["..."], "duration": 240000}
//
// Individual source protocols stay outside this module; a REST provider is
// how real sources get registered by URL.
type REST struct {
	name    string
	baseURL string
	client  *client.Client
	log     *logger.ComponentLogger
}

type restAnswer struct {
	URL      string   `json:"url"`
	BitRate  int      `json:"br"`
	Size     int64    `json:"size"`
	MD5      string   `json:"md5"`
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Artists  []string `json:"artists"`
	Duration int64    `json:"duration"`
}

// NewREST creates a REST provider named name, querying baseURL.
func NewREST(name, baseURL string, c *client.Client) *REST {
	if c == nil {
		c = client.New()
	}
	return &REST{
		name:    name,
		baseURL: baseURL,
		client:  c,
		log:     logger.WithComponent(logger.ComponentProvider),
	}
}

// Name returns the provider name used in match-order configuration.
func (p *REST) Name() string {
	return p.name
}

// Check queries the search endpoint for a substitute stream.
func (p *REST) Check(ctx context.Context, track types.Track) (types.Candidate, error) {
	q := url.Values{
		"keyword":  {track.Keyword()},
		"duration": {strconv.FormatInt(track.DurationMs, 10)},
	}
	resp, err := p.client.Get(ctx, p.baseURL+"/match?"+q.Encode())
	if err != nil {
		return types.Candidate{}, fmt.Errorf("%s: match request: %v", p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return types.Candidate{}, fmt.Errorf("%s: match status %d", p.name, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Candidate{}, fmt.Errorf("%s: match body: %v", p.name, err)
	}
	var answer restAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		return types.Candidate{}, fmt.Errorf("%s: match parse: %v", p.name, err)
	}
	if answer.URL == "" {
		return types.Candidate{}, errors.New(p.name + ": no match")
	}

	cand := types.Candidate{
		URL:        answer.URL,
		BitRate:    answer.BitRate,
		DurationMs: answer.Duration,
		Title:      answer.Title,
		Artists:    answer.Artists,
		Type:       answer.Type,
		Size:       answer.Size,
		MD5:        answer.MD5,
		Source:     p.name,
	}
	if cand.MD5 == "" {
		// Synthesize a checksum so downstream mutation always has one.
		cand.MD5 = crypto.MD5Hex(cand.URL)
	}
	p.log.Debug("candidate found", map[string]any{"source": p.name, "url": cand.URL})
	return cand, nil
}
