package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"gclid":        {},
	"dclid":        {},
	"fbclid":       {},
	"msclkid":      {},
}

// CanonicalURL normalises a URL for dedup and identifier derivation.
// It lowercases scheme and host, removes default ports, cleans the path
// without decoding escaped separators,
// drops the trailing slash (except for the root), strips the fragment,
// removes tracking parameters and sorts the remaining query.
// Schemeless input defaults to https.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidInput)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			parsed, err = url.Parse("https:" + raw)
		} else {
			parsed, err = url.Parse("https://" + raw)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: url missing host: %s", ErrInvalidInput, raw)
	}
	port := parsed.Port()
	if port != "" && !(parsed.Scheme == "http" && port == "80") && !(parsed.Scheme == "https" && port == "443") {
		host = host + ":" + port
	}
	parsed.Host = host
	parsed.User = nil

	// Clean the escaped form so encoded separators such as %2F stay encoded.
	cleanPath := path.Clean("/" + parsed.EscapedPath())
	decoded, err := url.PathUnescape(cleanPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	parsed.Path = decoded
	parsed.RawPath = cleanPath

	parsed.Fragment = ""
	parsed.RawFragment = ""

	query := parsed.Query()
	for key := range query {
		if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
			query.Del(key)
		}
	}
	// Encode sorts by key.
	parsed.RawQuery = query.Encode()
	parsed.ForceQuery = false

	return parsed.String(), nil
}

// ArtifactID derives the stable corpus identifier for a canonical URL:
// the lowercase hex SHA-256 of the URL string.
func ArtifactID(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

// ResolveURL resolves href against base and canonicalises the result.
func ResolveURL(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("%w: empty href", ErrInvalidInput)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return CanonicalURL(baseURL.ResolveReference(ref).String())
}
