package match

import (
	"context"
	"net/http"
	"strings"

	"github.com/tunelift/tunelift/types"
)

const (
	headerRange          = "Range"
	headerAccept         = "Accept"
	headerAcceptEncoding = "Accept-Encoding"
	headerContentType    = "Content-Type"

	probeRangeValue = "bytes=0-1"

	successMinHTTPStatusCode      = 200
	successMaxHTTPStatusExclusive = 400
)

// validate issues a minimal range probe against the candidate URL and accepts
// it when the response looks like audio. Sources that answer errors with a
// 200 and a JSON body are caught by sniffing the first byte.
func (m *Matcher) validate(ctx context.Context, cand types.Candidate) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cand.URL, nil)
	if err != nil {
		return false
	}
	req.Header.Set(headerRange, probeRangeValue)
	req.Header.Set(headerAccept, "*/*")
	req.Header.Set(headerAcceptEncoding, "identity")
	for k, v := range cand.Headers {
		req.Header.Set(k, v)
	}

	resp, err := m.httpc.Do(req)
	if err != nil || resp == nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < successMinHTTPStatusCode || resp.StatusCode >= successMaxHTTPStatusExclusive {
		return false
	}
	ct := strings.ToLower(resp.Header.Get(headerContentType))
	switch {
	case strings.HasPrefix(ct, "audio/"), strings.HasPrefix(ct, "video/"),
		strings.Contains(ct, "octet-stream"):
		return true
	}

	// Ambiguous or absent content type: reject bodies that open a JSON object.
	buf := make([]byte, 1)
	n, _ := resp.Body.Read(buf)
	if n == 1 && buf[0] == '{' {
		return false
	}
	return true
}
