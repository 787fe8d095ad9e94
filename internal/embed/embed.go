// Package embed converts media and document URLs into iframe-embeddable endpoints.
package embed

import (
	"net/url"
	"regexp"
	"strings"
)

// Failure reasons.
const (
	ReasonEmpty           = "empty"
	ReasonNotAURL         = "not_a_url"
	ReasonTwitchParent    = "twitch_requires_parent"
	ReasonUnsupportedHost = "unsupported_host"
)

// Options tune conversion.
type Options struct {
	// TwitchParent is the embedding page's domain; Twitch refuses to embed without it.
	TwitchParent string
}

// Result is the outcome of ToEmbedURL.
type Result struct {
	OK       bool   `json:"ok"`
	Provider string `json:"provider,omitempty"`
	EmbedURL string `json:"embed_url,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Host     string `json:"host,omitempty"`
}

var (
	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	digitsRe = regexp.MustCompile(`^\d+$`)
	leadNum  = regexp.MustCompile(`^\s*[+-]?\d+`)

	spotifyTypes = map[string]bool{
		"track": true, "album": true, "playlist": true,
		"episode": true, "show": true, "artist": true,
	}
)

// ToEmbedURL converts input into an embed URL for a known provider.
func ToEmbedURL(input string, opts Options) Result {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Result{Reason: ReasonEmpty}
	}

	if typ, id, ok := spotifyURI(raw); ok {
		return embedded("spotify", "https://open.spotify.com/embed/"+typ+"/"+id)
	}

	u := parseLoose(raw)
	if u == nil {
		return Result{Reason: ReasonNotAURL}
	}
	host := normHost(u.Hostname())
	parts := segments(u.Path)

	if id := youTubeID(host, u, parts); id != "" {
		embed := "https://www.youtube.com/embed/" + id
		if start := youTubeStart(u.Query()); start != "" {
			embed += "?" + url.Values{"start": {start}}.Encode()
		}
		return embedded("youtube", embed)
	}

	if id := vimeoID(host, parts); id != "" {
		return embedded("vimeo", "https://player.vimeo.com/video/"+id)
	}

	if host == "open.spotify.com" && len(parts) >= 2 && spotifyTypes[parts[0]] {
		return embedded("spotify", "https://open.spotify.com/embed/"+parts[0]+"/"+parts[1])
	}

	if host == "soundcloud.com" || host == "on.soundcloud.com" {
		return embedded("soundcloud", "https://w.soundcloud.com/player/?"+url.Values{"url": {u.String()}}.Encode())
	}

	if key, val := twitch(host, parts); key != "" {
		parent := strings.TrimSpace(opts.TwitchParent)
		if parent == "" {
			return Result{Provider: "twitch", Reason: ReasonTwitchParent}
		}
		q := url.Values{"parent": {parent}, key: {val}}
		return embedded("twitch", "https://player.twitch.tv/?"+q.Encode())
	}

	if host == "loom.com" && len(parts) >= 2 && (parts[0] == "share" || parts[0] == "embed") {
		return embedded("loom", "https://www.loom.com/embed/"+parts[1])
	}

	if host == "drive.google.com" {
		if len(parts) >= 3 && parts[0] == "file" && parts[1] == "d" {
			return embedded("gdrive", "https://drive.google.com/file/d/"+parts[2]+"/preview")
		}
		if id := u.Query().Get("id"); id != "" {
			return embedded("gdrive", "https://drive.google.com/file/d/"+id+"/preview")
		}
	}

	if host == "docs.google.com" && len(parts) >= 3 && parts[1] == "d" {
		id := parts[2]
		switch parts[0] {
		case "presentation":
			return embedded("gslides", "https://docs.google.com/presentation/d/"+id+"/embed")
		case "document":
			return embedded("gdocs", "https://docs.google.com/document/d/"+id+"/preview")
		case "spreadsheets":
			return embedded("gsheets", "https://docs.google.com/spreadsheets/d/"+id+"/preview")
		case "forms":
			return embedded("gforms", "https://docs.google.com/forms/d/"+id+"/viewform?embedded=true")
		}
	}

	return Result{Reason: ReasonUnsupportedHost, Host: host}
}

// NormalizeURL trims s and prefixes https:// unless it already has an http(s) scheme.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	return "https://" + s
}

func embedded(provider, embed string) Result {
	return Result{OK: true, Provider: provider, EmbedURL: embed}
}

func parseLoose(raw string) *url.URL {
	if !schemeRe.MatchString(raw) {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

func normHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func youTubeID(host string, u *url.URL, parts []string) string {
	switch host {
	case "youtu.be":
		if len(parts) > 0 {
			return parts[0]
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if len(parts) >= 2 {
			switch parts[0] {
			case "embed", "shorts", "live":
				return parts[1]
			}
		}
	}
	return ""
}

// youTubeStart reads start= or t= and keeps its leading integer ("90s" -> "90").
func youTubeStart(q url.Values) string {
	for _, k := range []string{"start", "t"} {
		v := strings.TrimSpace(q.Get(k))
		if v == "" {
			continue
		}
		n := strings.TrimPrefix(strings.TrimSpace(leadNum.FindString(v)), "+")
		if n == "" || n == "0" || n == "-0" {
			return ""
		}
		return n
	}
	return ""
}

func vimeoID(host string, parts []string) string {
	switch host {
	case "vimeo.com":
		if len(parts) > 0 && digitsRe.MatchString(parts[0]) {
			return parts[0]
		}
	case "player.vimeo.com":
		if len(parts) >= 2 && parts[0] == "video" && digitsRe.MatchString(parts[1]) {
			return parts[1]
		}
	}
	return ""
}

func spotifyURI(raw string) (typ, id string, ok bool) {
	if !strings.HasPrefix(strings.ToLower(raw), "spotify:") {
		return "", "", false
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// twitch returns the player query key (clip, video or channel) and its value.
func twitch(host string, parts []string) (string, string) {
	switch host {
	case "clips.twitch.tv":
		if len(parts) > 0 {
			return "clip", parts[0]
		}
	case "twitch.tv", "m.twitch.tv":
		if len(parts) >= 2 && parts[0] == "videos" {
			return "video", parts[1]
		}
		if len(parts) > 0 {
			return "channel", parts[0]
		}
	}
	return "", ""
}
