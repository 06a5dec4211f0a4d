package crawler

import (
	"net/url"
	"path"
	"strings"
)

// skippedExtensions are asset types that are never worth auditing as pages.
var skippedExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".json": {}, ".xml": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {},
	".mp3": {}, ".mp4": {}, ".webm": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

// NormalizeLink reduces a raw href to a canonical same-site page URL. It
// reports false for off-site links, non-HTTP schemes, and asset files.
// Fragments are dropped so anchors on one page do not count as distinct
// pages; query strings are kept because they can select real content.
func NormalizeLink(host, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	linkHost := strings.ToLower(u.Hostname())
	if linkHost != host && linkHost != "www."+host {
		return "", false
	}
	if _, skip := skippedExtensions[strings.ToLower(path.Ext(u.Path))]; skip {
		return "", false
	}

	u.Scheme = "https"
	u.Host = host
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), true
}
