// Package identity resolves the widget-scoping identifier and the
// optional lead access token from explicit options or from the host
// page URL. Resolution happens once at widget construction; nothing
// here is re-read mid-session.
package identity

import (
	"net/url"
	"strings"
)

// pathMarker is the literal path segment that introduces the widget
// route and must never be mistaken for an identifier.
const pathMarker = "chatbot"

// WidgetID resolves the widget identifier. An explicit value wins;
// otherwise the page URL is checked in order: query parameter, hash
// fragment query, trailing path segment.
func WidgetID(explicit, pageURL string) string {
	if explicit != "" {
		return explicit
	}
	return fromPageURL(pageURL, "id")
}

// AccessToken resolves the one-time lead verification token using the
// same lookup order as WidgetID.
func AccessToken(explicit, pageURL string) string {
	if explicit != "" {
		return explicit
	}
	return fromPageURL(pageURL, "token")
}

func fromPageURL(raw, param string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	if v := u.Query().Get(param); v != "" {
		return v
	}

	// Hash-based routing: #/chatbot?id=...
	if i := strings.Index(u.Fragment, "?"); i >= 0 {
		if vals, err := url.ParseQuery(u.Fragment[i+1:]); err == nil {
			if v := vals.Get(param); v != "" {
				return v
			}
		}
	}

	// Path style: /chatbot/<id>. A single segment or a bare marker is
	// not an identifier.
	segments := splitPath(u.Path)
	if len(segments) > 1 {
		last := segments[len(segments)-1]
		if last != "" && last != pathMarker {
			return last
		}
	}

	return ""
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
