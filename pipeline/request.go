package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/tunelift/tunelift/errs"
	"github.com/tunelift/tunelift/netease/crypto"
)

const (
	weapiPrefix = "/weapi/"
	eapiPrefix  = "/eapi/"
	apiPrefix   = "/api/"

	headerRealIP         = "X-Real-IP"
	syntheticClientIP    = "118.88.88.88"
	headerAcceptEncoding = "Accept-Encoding"
)

// trailingPadRe captures the literal pad suffix some clients append, a run
// of "%0" tokens, which must reappear on the re-encoded response body.
var trailingPadRe = regexp.MustCompile(`(?:%0+)+$`)

// InterceptRequest classifies and decodes an inbound request addressed to an
// allowed vendor host, rewriting it in place where needed. It returns nil for
// hosts outside the allow-list. A DecodeError means the request was left
// untouched and must be forwarded as-is with no response mutation.
func (p *Pipeline) InterceptRequest(req *http.Request) (*Envelope, error) {
	if !HostAllowed(req.Host) {
		return nil, nil
	}

	body, err := readRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("read request body: %v", err)
	}

	env := &Envelope{
		ID:     uuid.NewString()[:8],
		Params: map[string]any{},
		Pad:    trailingPadRe.FindString(string(body)),
	}

	urlPath := req.URL.Path
	switch {
	case strings.HasPrefix(urlPath, weapiPrefix):
		env.Kind = CryptoWeapi
		env.WebContext = true
		env.Path = crypto.StripTrailingDigits(strings.Replace(urlPath, weapiPrefix, apiPrefix, 1))
		// Web bodies stay opaque; just keep the upstream from compressing.
		req.Header.Del(headerAcceptEncoding)

	case urlPath == crypto.LinuxForwardPath:
		env.Kind = CryptoLinux
		form, ferr := url.ParseQuery(strings.TrimSuffix(string(body), env.Pad))
		if ferr != nil {
			return nil, errs.NewDecodeError(urlPath, ferr)
		}
		path, params, derr := crypto.DecodeLinuxForward(form.Get("eparams"))
		if derr != nil {
			return nil, derr
		}
		env.Path, env.Params = path, params

	case strings.HasPrefix(urlPath, eapiPrefix):
		env.Kind = CryptoEAPI
		form, ferr := url.ParseQuery(strings.TrimSuffix(string(body), env.Pad))
		if ferr != nil {
			return nil, errs.NewDecodeError(urlPath, ferr)
		}
		path, params, _, derr := crypto.DecodeEAPI(form.Get("params"))
		if derr != nil {
			return nil, derr
		}
		env.Path, env.Params = path, params
		env.EncryptedResponse = paramTrue(params["e_r"])

	default:
		env.Kind = CryptoNone
		env.Path = crypto.StripTrailingDigits(urlPath)
		for k, vs := range req.URL.Query() {
			if len(vs) > 0 {
				env.Params[k] = vs[0]
			}
		}
		if form, ferr := url.ParseQuery(string(body)); ferr == nil {
			for k, vs := range form {
				if len(vs) > 0 {
					env.Params[k] = vs[0]
				}
			}
		}
	}

	req.Header.Set(headerRealIP, syntheticClientIP)

	if env.Path == downloadURLPath || env.Path == downloadURLPathV1 {
		if rerr := p.pretendPlayer(req, env); rerr != nil {
			p.log.Warn("download rewrite failed", map[string]any{"id": env.ID, "err": rerr.Error()})
		}
	}

	p.log.Debug("request decoded", map[string]any{
		"id":   env.ID,
		"path": env.Path,
		"kind": int(env.Kind),
	})
	return env, nil
}

// pretendPlayer rewrites a download-URL exchange to the corresponding
// player-URL endpoint before transmission. The upstream enforces stricter
// entitlement checks on the download endpoint than on player.
func (p *Pipeline) pretendPlayer(req *http.Request, env *Envelope) error {
	newPath := playerURLPath
	params := map[string]any{
		"ids": fmt.Sprintf("[%v]", env.Params["id"]),
	}
	if env.Path == downloadURLPathV1 {
		newPath = playerURLPathV1
		params["level"] = env.Params["level"]
		params["encodeType"] = env.Params["encodeType"]
		if params["level"] == nil {
			params["level"] = "exhigh"
		}
	} else {
		params["br"] = env.Params["br"]
		if params["br"] == nil {
			params["br"] = "999000"
		}
	}
	for k, v := range params {
		if v == nil {
			delete(params, k)
		}
	}

	switch env.Kind {
	case CryptoEAPI:
		if env.EncryptedResponse {
			params["e_r"] = env.Params["e_r"]
		}
		enc, err := crypto.EncodeEAPI(newPath, params)
		if err != nil {
			return err
		}
		setRequestBody(req, "params="+enc+env.Pad)
		req.URL.Path = strings.Replace(newPath, apiPrefix, eapiPrefix, 1)

	case CryptoLinux:
		enc, err := crypto.EncodeLinuxForward(newPath, params)
		if err != nil {
			return err
		}
		setRequestBody(req, "eparams="+enc+env.Pad)

	case CryptoNone:
		form := url.Values{}
		for k, v := range params {
			form.Set(k, fmt.Sprintf("%v", v))
		}
		setRequestBody(req, form.Encode())
		req.URL.Path = newPath
		req.URL.RawQuery = ""

	default:
		// Web bodies are opaque; the download path cannot be rewritten there.
		return nil
	}

	env.Path = newPath
	env.Params = params
	p.log.Debug("download rewritten to player", map[string]any{"id": env.ID, "path": newPath})
	return nil
}

// readRequestBody drains and restores the request body.
func readRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	restoreRequestBody(req, body)
	return body, nil
}

func restoreRequestBody(req *http.Request, body []byte) {
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
}

func setRequestBody(req *http.Request, body string) {
	restoreRequestBody(req, []byte(body))
}

// paramTrue interprets the vendor's loosely typed boolean parameters.
func paramTrue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1"
	default:
		return false
	}
}
