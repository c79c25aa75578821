package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tunelift/tunelift/internal/mimeext"
	"github.com/tunelift/tunelift/netease/crypto"
	"github.com/tunelift/tunelift/types"
)

// vipExpiry is the fixed membership lifetime granted by the local VIP patch,
// computed from the patch time. Re-applying the patch sets the same absolute
// expiry instead of extending it.
const vipExpiry = 365 * 24 * time.Hour

var batchPaths = map[string]bool{
	"/batch":     true,
	"/api/batch": true,
}

// cdnHostRe matches non-switched CDN media hosts. The replacement inserts a
// "c" variant subdomain; an already-switched host no longer matches, so the
// rewrite is idempotent.
var cdnHostRe = regexp.MustCompile(`(m\d+)\.music\.126\.net`)

// InterceptResponse mutates the upstream response for an intercepted exchange
// and re-encodes it in the request's wire format. Envelopes for paths outside
// the mutation list pass through untouched. Body-level failures restore the
// decoded body and never fail the exchange.
func (p *Pipeline) InterceptResponse(ctx context.Context, env *Envelope, resp *http.Response) error {
	if env == nil || resp == nil || !pathMutated(env.Path) {
		return nil
	}

	raw, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("read response body: %v", err)
	}

	body := raw
	if env.EncryptedResponse {
		plain, derr := crypto.EAPIDecryptBytes(raw)
		if derr != nil {
			p.log.Warn("response decrypt failed", map[string]any{"id": env.ID, "path": env.Path, "err": derr.Error()})
			setResponseBody(resp, raw)
			return nil
		}
		body = plain
	}

	doc := make(map[string]any)
	if uerr := json.Unmarshal(body, &doc); uerr != nil {
		p.log.Debug("response is not a JSON document", map[string]any{"id": env.ID, "path": env.Path})
		setResponseBody(resp, body)
		return nil
	}

	p.patchDocument(ctx, env, doc)

	out, merr := json.Marshal(doc)
	if merr != nil {
		p.log.Warn("response re-encode failed", map[string]any{"id": env.ID, "err": merr.Error()})
		setResponseBody(resp, body)
		return nil
	}
	if env.EncryptedResponse {
		out = crypto.EAPIEncryptBytes(out)
	}
	if env.Pad != "" {
		out = append(out, env.Pad...)
	}

	setResponseBody(resp, out)
	resp.Header.Set("Content-Type", "application/json; charset=utf-8")
	return nil
}

// patchDocument applies every patch family whose trigger matches the exchange.
func (p *Pipeline) patchDocument(ctx context.Context, env *Envelope, doc map[string]any) {
	if p.enableVIP {
		if env.Path == vipInfoPath {
			p.patchVIP(doc)
		} else if batchPaths[env.Path] {
			for key, sub := range doc {
				if strings.HasPrefix(key, vipInfoPath) {
					if subDoc, ok := sub.(map[string]any); ok {
						p.patchVIP(subDoc)
					}
				}
			}
		}
	}

	switch {
	case strings.Contains(env.Path, "url"):
		p.patchTrackURLs(ctx, env, doc)
	case strings.HasPrefix(env.Path, soundEffectPrefix):
		patchSoundEffects(doc)
	case env.Path == lyricAuthorityPath:
		patchLyricAuthority(doc)
	}
}

// patchTrackURLs walks the data section of a track-URL response and replaces
// every unusable entry with a substitute candidate. A failed substitution
// leaves only that entry as upstream returned it.
func (p *Pipeline) patchTrackURLs(ctx context.Context, env *Envelope, doc map[string]any) {
	switch data := doc["data"].(type) {
	case map[string]any:
		p.mutateTrackEntry(ctx, env, data)
	case []any:
		for _, e := range data {
			if entry, ok := e.(map[string]any); ok {
				p.mutateTrackEntry(ctx, env, entry)
			}
		}
	}
}

func (p *Pipeline) mutateTrackEntry(ctx context.Context, env *Envelope, entry map[string]any) {
	id := numString(entry["id"])
	code := numInt64(entry["code"])
	br := numInt64(entry["br"])

	usable := code == 200 &&
		entry["freeTrialInfo"] == nil &&
		br >= int64(p.minBitrate)
	if usable {
		if env.WebContext {
			if u, ok := entry["url"].(string); ok {
				entry["url"] = cdnHostRe.ReplaceAllString(u, "${1}c.music.126.net")
			}
		}
		return
	}

	cand, err := p.matcher.Match(ctx, id, nil)
	if err != nil {
		p.log.Debug("no substitute for track", map[string]any{"id": env.ID, "track": id, "err": err.Error()})
		return
	}
	p.applyCandidate(entry, id, cand)
}

// applyCandidate splices a winning candidate into a track entry and clears
// the entitlement flags that made the upstream URL unusable.
func (p *Pipeline) applyCandidate(entry map[string]any, id string, cand types.Candidate) {
	ext := cand.Type
	if ext == "" {
		ext = mimeext.ExtFromURL(cand.URL)
	}
	if ext == "" {
		ext = mimeext.DefaultExt
	}

	u := cand.URL
	if p.endpoint != "" {
		u = fmt.Sprintf("%s/package/%s/%s.%s",
			strings.TrimRight(p.endpoint, "/"), crypto.Base64URL([]byte(cand.URL)), id, ext)
	}

	entry["url"] = u
	entry["type"] = ext
	if cand.BitRate > 0 {
		entry["br"] = cand.BitRate
	}
	if cand.Size > 0 {
		entry["size"] = cand.Size
	}
	md5 := cand.MD5
	if md5 == "" {
		md5 = crypto.MD5Hex(cand.URL)
	}
	entry["md5"] = md5
	entry["code"] = 200
	entry["flag"] = 0
	delete(entry, "freeTrialInfo")

	p.log.Info("track substituted", map[string]any{"track": id, "source": cand.Source, "br": cand.BitRate})
}

// patchVIP synthesizes an active membership record with a one-year expiry.
// The expiry is absolute, so the patch is idempotent for a fixed clock.
func (p *Pipeline) patchVIP(doc map[string]any) {
	expire := p.now().Add(vipExpiry).UnixMilli()

	data, ok := doc["data"].(map[string]any)
	if !ok {
		data = make(map[string]any)
		doc["data"] = data
	}
	doc["code"] = 200

	data["redVipLevel"] = 7
	data["redVipAnnualCount"] = 1
	data["musicPackage"] = vipPackage(expire)
	data["associator"] = vipPackage(expire)
	if p.enableSVIP {
		data["redplus"] = vipPackage(expire)
		data["albumVip"] = vipPackage(expire)
	}
}

func vipPackage(expire int64) map[string]any {
	return map[string]any{
		"expireTime": expire,
		"vipLevel":   7,
		"isSign":     true,
	}
}

// patchSoundEffects forces every listed effect to the unlocked type.
func patchSoundEffects(doc map[string]any) {
	data, ok := doc["data"].([]any)
	if !ok {
		return
	}
	for _, e := range data {
		if entry, ok := e.(map[string]any); ok {
			entry["type"] = 1
		}
	}
}

// patchLyricAuthority marks every lyrics-permission entry usable.
func patchLyricAuthority(doc map[string]any) {
	doc["code"] = 200
	switch data := doc["data"].(type) {
	case map[string]any:
		markLyricUsable(data)
	case []any:
		for _, e := range data {
			if entry, ok := e.(map[string]any); ok {
				markLyricUsable(entry)
			}
		}
	}
}

func markLyricUsable(entry map[string]any) {
	entry["status"] = 0
	entry["reason"] = 0
}

// numString renders the vendor's loosely typed numeric ids as strings.
func numString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	default:
		return ""
	}
}

func numInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
