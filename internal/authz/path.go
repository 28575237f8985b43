package authz

import (
	"strings"
)

// matchPath matches a request path against a resource URI pattern. Pattern
// segments of the form {name} match any single segment, and * matches any
// single segment or, as the last segment, any remainder of the path. The
// returned score ranks more specific matches higher.
func matchPath(pattern, path string) (int, bool) {
	pattern = normalizePath(pattern)
	path = normalizePath(path)
	if pattern == path {
		return 1 << 20, true
	}
	ps := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	ss := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if path == "/" {
		ss = nil
	}
	score := 0
	for i, p := range ps {
		last := i == len(ps)-1
		if p == "*" && last {
			// trailing wildcard also matches the parent path itself
			return score, i <= len(ss)
		}
		if i >= len(ss) {
			return 0, false
		}
		switch {
		case p == "*":
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			if ss[i] == "" {
				return 0, false
			}
			score++
		case strings.HasPrefix(p, "*."):
			// suffix match, such as *.html
			if !strings.HasSuffix(ss[i], p[1:]) {
				return 0, false
			}
			score += 2
		default:
			if p != ss[i] {
				return 0, false
			}
			score += 4
		}
	}
	return score, len(ps) == len(ss)
}

// normalizePath ensures a leading slash and removes a trailing slash.
func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// bestMatch returns the resource with the most specific URI matching path,
// or nil.
func bestMatch(resources []*Resource, path string) *Resource {
	var best *Resource
	bestScore := -1
	for _, r := range resources {
		for _, uri := range r.URIs {
			score, ok := matchPath(uri, path)
			if ok && score > bestScore {
				best, bestScore = r, score
			}
		}
	}
	return best
}
