// Package pipeline intercepts vendor API exchanges: it decodes the wire
// envelopes, rewrites download requests into player requests, and splices
// substitute audio URLs into responses before re-encoding them.
package pipeline

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/tunelift/tunelift/internal/logger"
	"github.com/tunelift/tunelift/match"
	"github.com/tunelift/tunelift/pkg/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CryptoKind identifies the wire format of one intercepted exchange.
type CryptoKind int

const (
	// CryptoNone marks plain form-encoded exchanges.
	CryptoNone CryptoKind = iota
	// CryptoWeapi marks web-facing exchanges, which are never decrypted.
	CryptoWeapi
	// CryptoEAPI marks eapi cipher envelopes.
	CryptoEAPI
	// CryptoLinux marks linux-forward cipher envelopes.
	CryptoLinux
)

// Envelope is the decoded view of one intercepted request/response pair.
// Kind and the decoding rule that produced Params/Path are fixed for the
// lifetime of the exchange; Pad must reappear verbatim on the re-encoded
// response body.
type Envelope struct {
	ID     string
	Kind   CryptoKind
	Path   string
	Params map[string]any
	Pad    string
	// WebContext is true for the web-facing prefix, which resolves tracks
	// by live fetch instead of inline parameters.
	WebContext bool
	// EncryptedResponse is derived from the e_r parameter.
	EncryptedResponse bool
}

// Pipeline is the request-scoped interception façade. It keeps no state
// between exchanges except what its collaborators share.
type Pipeline struct {
	matcher *match.Matcher
	httpc   *client.Client
	log     *logger.ComponentLogger

	minBitrate int
	enableVIP  bool
	enableSVIP bool
	endpoint   string

	// now is overridable for tests of time-derived patches.
	now func() time.Time
}

// New creates a pipeline around a matcher.
func New(matcher *match.Matcher, httpc *client.Client) *Pipeline {
	if httpc == nil {
		httpc = client.New()
	}
	return &Pipeline{
		matcher: matcher,
		httpc:   httpc,
		log:     logger.WithComponent(logger.ComponentPipeline),
		now:     time.Now,
	}
}

// WithMinBitrate sets the bitrate floor below which upstream track URLs are
// replaced.
func (p *Pipeline) WithMinBitrate(br int) *Pipeline {
	if br > 0 {
		p.minBitrate = br
	}
	return p
}

// WithLocalVIP enables VIP membership simulation; svip additionally unlocks
// the premium sub-packages.
func (p *Pipeline) WithLocalVIP(vip, svip bool) *Pipeline {
	p.enableVIP = vip || svip
	p.enableSVIP = svip
	return p
}

// WithEndpoint wraps substitute URLs for an external relay service instead
// of exposing raw provider URLs.
func (p *Pipeline) WithEndpoint(endpoint string) *Pipeline {
	p.endpoint = endpoint
	return p
}
