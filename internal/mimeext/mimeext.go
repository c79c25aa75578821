package mimeext

import (
	"strings"
)

const (
	// DefaultExt is the extension used when MIME is unknown or empty.
	DefaultExt = "mp3"

	// ExtM4A is the file extension for MP4 audio.
	ExtM4A = "m4a"
	// ExtFLAC is the file extension for FLAC audio.
	ExtFLAC = "flac"
	// ExtOGG is the file extension for Ogg audio.
	ExtOGG = "ogg"

	// MimeAudioMPEG is the MIME type for MP3 audio.
	MimeAudioMPEG = "audio/mpeg"
	// MimeAudioMP4 is the MIME type for MP4 audio.
	MimeAudioMP4 = "audio/mp4"
	// MimeAudioFLAC is the MIME type for FLAC audio.
	MimeAudioFLAC = "audio/flac"
	// MimeAudioXFLAC is the legacy MIME type for FLAC audio.
	MimeAudioXFLAC = "audio/x-flac"
	// MimeAudioOGG is the MIME type for Ogg audio.
	MimeAudioOGG = "audio/ogg"
)

// ExtFromMime returns a codec file extension (without dot) for a content type.
// Falls back to the subtype or mp3 when unknown.
func ExtFromMime(mime string) string {
	mime = strings.TrimSpace(mime)
	if mime == "" {
		return DefaultExt
	}
	base := mime
	if i := strings.Index(mime, ";"); i >= 0 {
		base = strings.TrimSpace(mime[:i])
	}
	switch base {
	case MimeAudioMPEG:
		return DefaultExt
	case MimeAudioMP4:
		return ExtM4A
	case MimeAudioFLAC, MimeAudioXFLAC:
		return ExtFLAC
	case MimeAudioOGG:
		return ExtOGG
	}
	parts := strings.Split(base, "/")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}
	return DefaultExt
}

// ExtFromURL guesses a codec extension from the path component of a URL,
// ignoring query strings. Empty when the path carries no extension.
func ExtFromURL(rawURL string) string {
	path := rawURL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndex(path, "."); i >= 0 && i < len(path)-1 {
		return strings.ToLower(path[i+1:])
	}
	return ""
}
