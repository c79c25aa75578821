package types

import "strings"

// Track is the canonical identity of one vendor track, resolved once and cached.
type Track struct {
	ID          string
	Name        string
	DurationMs  int64
	AlbumName   string
	ArtistNames []string
}

// Artists joins the ordered artist list the way search keywords expect it.
func (t Track) Artists() string {
	return strings.Join(t.ArtistNames, " / ")
}

// Keyword returns the "{name} - {artists}" search phrase used to query providers.
func (t Track) Keyword() string {
	return t.Name + " - " + t.Artists()
}

// KeywordWithAlbum appends the album name to the search phrase when one exists.
func (t Track) KeywordWithAlbum() string {
	kw := t.Keyword()
	if t.AlbumName != "" {
		kw += " " + t.AlbumName
	}
	return kw
}

// Candidate is one provider's proposed substitute audio stream.
// It lives for a single match call and is never persisted.
type Candidate struct {
	URL        string
	BitRate    int
	DurationMs int64
	Title      string
	Artists    []string
	Type       string // codec extension, e.g. "mp3", "flac"
	Size       int64
	MD5        string
	Source     string
	// Headers are extra request headers required to fetch URL directly.
	Headers map[string]string
}
