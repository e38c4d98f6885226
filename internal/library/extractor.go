// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package library

import (
	"net/url"
	"regexp"
	"strings"
)

// Extractor derives a stable external id from a source URL.
type Extractor interface {
	// Kind names the source, e.g. "youtube".
	Kind() string
	// Extract returns the external id, or false if the URL is not recognized.
	Extract(rawURL string) (string, bool)
}

// SourceYouTube is the kind reported by YouTubeExtractor.
const SourceYouTube = "youtube"

var youTubeID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// YouTubeExtractor recognizes youtu.be and youtube.com watch, embed, shorts
// and live URLs. It never touches the network.
type YouTubeExtractor struct{}

// Kind implements Extractor.
func (YouTubeExtractor) Kind() string { return SourceYouTube }

// Extract implements Extractor.
func (YouTubeExtractor) Extract(rawURL string) (string, bool) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "youtube-nocookie.com":
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch {
		case len(segments) == 1 && segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && isPathPrefix(segments[0]):
			id = segments[1]
		}
	}

	if !youTubeID.MatchString(id) {
		return "", false
	}
	return id, true
}

func isPathPrefix(s string) bool {
	switch s {
	case "embed", "shorts", "live", "v":
		return true
	}
	return false
}

func firstSegment(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return seg
}

var _ Extractor = YouTubeExtractor{}
