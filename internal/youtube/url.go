// Package youtube holds the pure URL and filename helpers used at the
// request boundary. Nothing here touches the filesystem or the network.
package youtube

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Normalize canonicalizes a client-supplied YouTube URL to
// https://www.youtube.com/watch?v=<id>. It accepts youtu.be short links,
// youtube.com watch/shorts/embed URLs, and the m. / www. host variants.
// Returns false when no 11-character video id can be extracted.
func Normalize(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	var id string
	switch u.Hostname() {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
		} else if rest, ok := strings.CutPrefix(strings.TrimPrefix(u.Path, "/"), "shorts/"); ok {
			id = strings.Trim(rest, "/")
		} else if rest, ok := strings.CutPrefix(strings.TrimPrefix(u.Path, "/"), "embed/"); ok {
			id = strings.Trim(rest, "/")
		}
	default:
		return "", false
	}

	if !videoIDRe.MatchString(id) {
		return "", false
	}
	return "https://www.youtube.com/watch?v=" + id, true
}

// PlaylistID extracts the list parameter from a YouTube URL, or returns
// the input unchanged when it already looks like a bare playlist id.
func PlaylistID(raw string) (string, bool) {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		if list := u.Query().Get("list"); list != "" {
			return list, true
		}
		return "", false
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.ContainsAny(trimmed, "/?&= ") {
		return "", false
	}
	return trimmed, true
}

// IsPlaylist reports whether raw is a YouTube URL carrying a playlist
// reference.
func IsPlaylist(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "youtu.be", "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		return u.Query().Get("list") != ""
	}
	return false
}

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*]+`)

// SanitizeFilename replaces filesystem-hostile characters with underscores
// and trims surrounding whitespace and dots. The result is safe to embed
// in a Content-Disposition header and in download URLs.
func SanitizeFilename(name string) string {
	clean := unsafeFilenameRe.ReplaceAllString(name, "_")
	clean = strings.Trim(clean, " .")
	if clean == "" {
		clean = "file"
	}
	return clean
}
