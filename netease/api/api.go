// Package api talks to the vendor's public endpoints to resolve canonical
// track identities.
package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/tunelift/tunelift/errs"
	"github.com/tunelift/tunelift/internal/cache"
	"github.com/tunelift/tunelift/internal/logger"
	"github.com/tunelift/tunelift/pkg/client"
	"github.com/tunelift/tunelift/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// detailURL is a package var so tests can point it at a local server.
var detailURL = "https://music.163.com/api/v3/song/detail"

const (
	cacheKeyPrefix = "find:"
	cacheTTL       = 30 * time.Minute
)

var (
	fullWidthParens = strings.NewReplacer("（", "(", "）", ")")
	coverAnnotation = regexp.MustCompile(`(?i)\s*\((cover|翻唱)[:：\s][^)]*\)`)
	spaceCollapse   = regexp.MustCompile(`\s+`)
)

// Resolver resolves track ids to canonical identities, caching results to
// avoid repeat network fetches.
type Resolver struct {
	client *client.Client
	cache  *cache.Cache
	log    *logger.ComponentLogger
}

// NewResolver creates a resolver backed by the shared cache.
func NewResolver(c *client.Client, ca *cache.Cache) *Resolver {
	if c == nil {
		c = client.New()
	}
	return &Resolver{
		client: c,
		cache:  ca,
		log:    logger.WithComponent(logger.ComponentResolver),
	}
}

// Resolve returns the canonical identity for a track id. When inline vendor
// data is supplied it is formatted directly with no network call and no cache
// write; otherwise the vendor detail endpoint is queried through the cache.
func (r *Resolver) Resolve(ctx context.Context, id string, inline map[string]any) (types.Track, error) {
	if inline != nil {
		return formatSong(id, inline)
	}
	v, err := r.cache.GetOrAdd(cacheKeyPrefix+id, func() (any, error) {
		return r.fetch(ctx, id)
	}, cacheTTL)
	if err != nil {
		return types.Track{}, err
	}
	return v.(types.Track), nil
}

// fetch queries the vendor's public detail endpoint for a single track.
func (r *Resolver) fetch(ctx context.Context, id string) (types.Track, error) {
	form := url.Values{"c": {fmt.Sprintf(`[{"id":%s}]`, id)}}
	resp, err := r.client.PostForm(ctx, detailURL, form.Encode())
	if err != nil {
		return types.Track{}, fmt.Errorf("song detail request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Track{}, fmt.Errorf("song detail body: %v", err)
	}

	var doc struct {
		Songs []map[string]any `json:"songs"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return types.Track{}, fmt.Errorf("song detail parse: %v", err)
	}
	if len(doc.Songs) == 0 {
		r.log.Debug("no songs in detail payload", map[string]any{"id": id})
		return types.Track{}, errs.ErrTrackNotFound
	}
	track, err := formatSong(id, doc.Songs[0])
	if err != nil {
		return types.Track{}, err
	}
	r.log.Debug("resolved track", map[string]any{"id": track.ID, "keyword": track.Keyword()})
	return track, nil
}

// formatSong builds a Track from a vendor song object. Both the v3 field set
// (ar/al/dt) and the legacy one (artists/album/duration) are understood.
func formatSong(id string, song map[string]any) (types.Track, error) {
	track := types.Track{ID: id}
	if v, ok := song["id"]; ok {
		track.ID = numberToString(v)
	}
	name, _ := song["name"].(string)
	if name == "" {
		return types.Track{}, errs.ErrTrackNotFound
	}
	track.Name = NormalizeName(name)

	switch {
	case song["dt"] != nil:
		track.DurationMs = toInt64(song["dt"])
	case song["duration"] != nil:
		track.DurationMs = toInt64(song["duration"])
	}
	if track.DurationMs < 0 {
		track.DurationMs = 0
	}

	if album, ok := song["al"].(map[string]any); ok {
		track.AlbumName, _ = album["name"].(string)
	} else if album, ok := song["album"].(map[string]any); ok {
		track.AlbumName, _ = album["name"].(string)
	}

	artists := song["ar"]
	if artists == nil {
		artists = song["artists"]
	}
	if list, ok := artists.([]any); ok {
		for _, a := range list {
			if m, ok := a.(map[string]any); ok {
				if n, ok := m["name"].(string); ok && n != "" {
					track.ArtistNames = append(track.ArtistNames, n)
				}
			}
		}
	}
	return track, nil
}

// NormalizeName strips vendor cover/remix annotations from a display name and
// normalizes full-width parentheses.
func NormalizeName(name string) string {
	name = fullWidthParens.Replace(name)
	name = coverAnnotation.ReplaceAllString(name, "")
	return strings.TrimSpace(spaceCollapse.ReplaceAllString(name, " "))
}

func numberToString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return fmt.Sprintf("%.0f", n)
	case int64:
		return fmt.Sprintf("%d", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		var out int64
		_, _ = fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}
