package storage

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-]`)

// SanitizeName replaces every character outside [a-zA-Z0-9.-] with '_' so the
// name is safe inside an object key.
func SanitizeName(name string) string {
	clean := unsafeNameChars.ReplaceAllString(name, "_")
	if clean == "" {
		return "file"
	}
	return clean
}

// AssetKey namespaces a primary upload by workspace and asset identity.
func AssetKey(workspaceID, assetID, fileName string) string {
	return path.Join(workspaceID, assetID, SanitizeName(fileName))
}

// StemKey namespaces a derived upload under its parent asset.
func StemKey(parentAssetID, stemID, fileName string) string {
	return path.Join(parentAssetID, "stems", stemID+"-"+SanitizeName(fileName))
}

// PublicURL joins base and key, escaping each key segment.
func PublicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}

// KeyFromURL recovers the object key from a URL produced by PublicURL. It
// reports false for URLs outside base (different host, scheme or prefix) and
// for keys that try to climb out of the bucket.
func KeyFromURL(base, raw string) (string, bool) {
	b, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != b.Scheme || u.Host != b.Host {
		return "", false
	}
	prefix := b.Path + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, prefix)
	if key == "" || strings.HasSuffix(key, "/") {
		return "", false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}
	return key, true
}
