package pipeline

import "strings"

// allowedHosts is the fixed set of vendor API hostnames the pipeline
// intercepts. Anything else passes through untouched.
var allowedHosts = map[string]bool{
	"music.163.com":            true,
	"interface.music.163.com":  true,
	"interface3.music.163.com": true,
	"apm.music.163.com":        true,
	"apm3.music.163.com":       true,
}

// mutatedPaths is the fixed list of logical paths whose JSON responses are
// candidates for mutation. Other paths on an allowed host are still decoded
// for request rewriting but never response-mutated.
var mutatedPaths = map[string]bool{
	"/api/v3/song/detail":                    true,
	"/api/v3/playlist/detail":                true,
	"/api/v6/playlist/detail":                true,
	"/api/playlist/v4/detail":                true,
	"/api/playlist/privilege":                true,
	"/api/album/play":                        true,
	"/api/album/privilege":                   true,
	"/api/album/v3/detail":                   true,
	"/api/v1/album":                          true,
	"/api/v1/artist":                         true,
	"/api/v1/artist/songs":                   true,
	"/api/artist/privilege":                  true,
	"/api/artist/top/song":                   true,
	"/api/v1/discovery/new/songs":            true,
	"/api/v1/discovery/recommend/songs":      true,
	"/api/v1/discovery/simiSong":             true,
	"/api/v1/search/get":                     true,
	"/api/search/get":                        true,
	"/api/cloudsearch/pc":                    true,
	"/api/v1/playlist/manipulate/tracks":     true,
	"/api/song/like":                         true,
	"/api/v1/play/record":                    true,
	"/api/playmode/intelligence/list":        true,
	"/api/batch":                             true,
	"/batch":                                 true,
	"/api/song/enhance/privilege":            true,
	"/api/song/enhance/player/url":           true,
	"/api/song/enhance/player/url/v1":        true,
	"/api/song/enhance/download/url":         true,
	"/api/song/enhance/download/url/v1":      true,
	"/api/song/url":                          true,
	"/api/v1/radio/get":                      true,
	"/api/radio/get":                         true,
	"/api/music-vip-membership/client/vip/info": true,
	"/api/usertool/sound/mobile/promote":        true,
	"/api/usertool/sound/mobile/theme/all":      true,
	"/api/usertool/sound/mobile/animationList":  true,
	"/api/song/lyric/authority":                 true,
}

const (
	vipInfoPath = "/api/music-vip-membership/client/vip/info"

	soundEffectPrefix  = "/api/usertool/sound/mobile/"
	lyricAuthorityPath = "/api/song/lyric/authority"

	downloadURLPath   = "/api/song/enhance/download/url"
	downloadURLPathV1 = "/api/song/enhance/download/url/v1"
	playerURLPath     = "/api/song/enhance/player/url"
	playerURLPathV1   = "/api/song/enhance/player/url/v1"
)

// HostAllowed reports whether host (optionally with port) is on the
// intercept allow-list. Matching is exact and case-insensitive.
func HostAllowed(host string) bool {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return allowedHosts[host]
}

// pathMutated reports whether a logical path's response may be mutated.
func pathMutated(path string) bool {
	if mutatedPaths[path] {
		return true
	}
	return strings.HasPrefix(path, soundEffectPrefix)
}
