package services

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// ScopeFilter decides whether a discovered URL belongs to the crawl.
// A URL is in scope when its host is an allowed domain and its path lies
// under one of the configured prefixes.
type ScopeFilter struct {
	domains  map[string]struct{}
	prefixes []string
}

// NewScopeFilter creates a filter. When domains is empty the seed hosts
// are allowed. An empty prefix list admits every path.
func NewScopeFilter(domains, prefixes, seeds []string) *ScopeFilter {
	f := &ScopeFilter{domains: make(map[string]struct{})}

	for _, d := range domains {
		if host := normalizeHost(d); host != "" {
			f.domains[host] = struct{}{}
		}
	}
	if len(f.domains) == 0 {
		for _, s := range seeds {
			if u, err := url.Parse(strings.TrimSpace(s)); err == nil {
				if host := normalizeHost(u.Hostname()); host != "" {
					f.domains[host] = struct{}{}
				}
			}
		}
	}

	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f.prefixes = append(f.prefixes, path.Clean("/"+p))
	}

	return f
}

// InScope reports whether rawURL may be crawled. It has no side effects.
func (f *ScopeFilter) InScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if _, ok := f.domains[normalizeHost(u.Hostname())]; !ok {
		return false
	}
	if len(f.prefixes) == 0 {
		return true
	}

	p := path.Clean("/" + u.Path)
	for _, prefix := range f.prefixes {
		if hasPathPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Domains returns the allowed hosts, sorted.
func (f *ScopeFilter) Domains() []string {
	out := make([]string, 0, len(f.domains))
	for d := range f.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// hasPathPrefix matches whole path segments: /guide matches /guide and
// /guide/a but not /guidebook.
func hasPathPrefix(p, prefix string) bool {
	if prefix == "/" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

func normalizeHost(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if u, err := url.Parse(value); err == nil && u.Host != "" {
			value = u.Hostname()
		}
	}
	return strings.TrimPrefix(value, "www.")
}
