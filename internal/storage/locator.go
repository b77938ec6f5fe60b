package storage

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// Locator maps object-storage keys registered by the workflow engine to
// public URLs. Objects are written by the engine; this service only points
// at them.
type Locator struct {
	base *url.URL
}

// NewLocator parses the public base URL of the media bucket.
func NewLocator(baseURL string) (*Locator, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("storage: base url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("storage: base url must be absolute")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return &Locator{base: u}, nil
}

// URL returns the public address of key. Keys are cleaned so they cannot
// escape the bucket prefix.
func (l *Locator) URL(key string) (string, error) {
	if l == nil {
		return "", errors.New("storage: no locator configured")
	}
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	u := *l.base
	u.Path = u.Path + "/" + clean
	return u.String(), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
