package match

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tunelift/tunelift/pkg/client"
	"github.com/tunelift/tunelift/provider"
	"github.com/tunelift/tunelift/types"
)

func probeMatcher() *Matcher {
	return New(fakeResolver{}, provider.NewRegistry(), client.New())
}

func TestValidateAcceptsAudioContentType(t *testing.T) {
	var gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte{0xff, 0xfb})
	}))
	defer server.Close()

	if !probeMatcher().validate(context.Background(), types.Candidate{URL: server.URL}) {
		t.Fatal("audio content type must validate")
	}
	if gotRange != "bytes=0-1" {
		t.Fatalf("probe must request a single-byte range, got %q", gotRange)
	}
}

func TestValidateAcceptsBinaryWithoutContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x49, 0x44})
	}))
	defer server.Close()

	if !probeMatcher().validate(context.Background(), types.Candidate{URL: server.URL}) {
		t.Fatal("binary body without content type must validate")
	}
}

func TestValidateRejectsJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"msg":"not audio"}`))
	}))
	defer server.Close()

	if probeMatcher().validate(context.Background(), types.Candidate{URL: server.URL}) {
		t.Fatal("JSON error body must be rejected")
	}
}

func TestValidateRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	if probeMatcher().validate(context.Background(), types.Candidate{URL: server.URL}) {
		t.Fatal("4xx status must be rejected")
	}
}

func TestValidateSendsExtraHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://source.example.com" {
			t.Errorf("missing extra header, got %q", r.Header.Get("Referer"))
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff})
	}))
	defer server.Close()

	cand := types.Candidate{
		URL:     server.URL,
		Headers: map[string]string{"Referer": "https://source.example.com"},
	}
	if !probeMatcher().validate(context.Background(), cand) {
		t.Fatal("candidate with extra headers must validate")
	}
}
