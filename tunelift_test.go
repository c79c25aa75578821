package tunelift

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/tunelift/tunelift/pkg/client"
)

// rewriteTransport redirects every request to a local test server while
// keeping the original Host header visible to the handler under test.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func engineAgainst(t *testing.T, upstream *httptest.Server) *Engine {
	t.Helper()
	u, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatal(err)
	}
	httpc := &client.Client{
		HTTPClient: &http.Client{Transport: rewriteTransport{target: u}},
		Retries:    1,
	}
	return New().WithHTTPClient(httpc)
}

func TestHandlerForwardsForeignHosts(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		_, _ = w.Write([]byte("plain"))
	}))
	defer upstream.Close()

	h := engineAgainst(t, upstream).Handler()
	req := httptest.NewRequest("GET", "http://example.org/anything", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "plain" {
		t.Fatalf("foreign host must pass through: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Fatal("upstream headers must be preserved")
	}
}

func TestHandlerPatchesVIPResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Real-IP") != "118.88.88.88" {
			t.Errorf("missing synthetic client IP, got %q", r.Header.Get("X-Real-IP"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":{"redVipLevel":0}}`))
	}))
	defer upstream.Close()

	h := engineAgainst(t, upstream).WithLocalVIP(true, false).Handler()
	req := httptest.NewRequest("GET", "http://music.163.com/api/music-vip-membership/client/vip/info", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"redVipLevel":7`) {
		t.Fatalf("vip record not patched: %s", rec.Body.String())
	}
}

func TestHandlerSurvivesUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // connection refused from here on

	h := engineAgainst(t, upstream).Handler()
	req := httptest.NewRequest("GET", "http://music.163.com/api/v3/song/detail", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unreachable upstream must answer 502, got %d", rec.Code)
	}
}

func TestEngineSweepCache(t *testing.T) {
	e := New()
	e.SweepCache() // must build lazily and not panic
	if e.cache == nil {
		t.Fatal("sweep must initialize the component graph")
	}
}

func TestRegisterSource(t *testing.T) {
	e := New().RegisterSource("kuwo", "http://localhost:9999")
	if _, ok := e.registry.Get("kuwo"); !ok {
		t.Fatal("source must land in the registry")
	}
}
