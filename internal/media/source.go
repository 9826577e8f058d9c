// Package media defines the playable sources a player can be bound to.
package media

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Kind distinguishes file-backed clips from live capture.
type Kind string

const (
	KindFile   Kind = "file"
	KindCamera Kind = "camera"
)

// Identity is the comparable form of a Source: kind plus canonical URL.
type Identity string

// Source is an immutable playable source. The zero value means "no source".
type Source struct {
	kind Kind
	url  string
}

// File returns a file-backed source for rawURL. Relative paths, absolute
// paths and http(s) URLs are accepted; the URL is canonicalized so that
// spellings of the same clip compare equal.
func File(rawURL string) (Source, error) {
	canonical, err := canonicalURL(rawURL)
	if err != nil {
		return Source{}, err
	}
	return Source{kind: KindFile, url: canonical}, nil
}

// MustFile is like File but panics on an invalid URL. For constants and tests.
func MustFile(rawURL string) Source {
	s, err := File(rawURL)
	if err != nil {
		panic(err)
	}
	return s
}

// Camera returns the live capture source.
func Camera() Source {
	return Source{kind: KindCamera}
}

func canonicalURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("media: empty source url")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("media: invalid source url %q: %w", rawURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path != "" {
		cleaned := path.Clean(u.Path)
		if cleaned == "." {
			return "", fmt.Errorf("media: source url %q has no path", rawURL)
		}
		u.Path = cleaned
		u.RawPath = ""
	}

	return u.String(), nil
}

// Kind returns the source kind, empty for the zero Source.
func (s Source) Kind() Kind { return s.kind }

// URL returns the canonical URL of a file source.
func (s Source) URL() string { return s.url }

// IsZero reports whether s is the empty source.
func (s Source) IsZero() bool { return s.kind == "" }

// IsCamera reports whether s is the live capture source.
func (s Source) IsCamera() bool { return s.kind == KindCamera }

// Identity returns the comparable identity of s.
func (s Source) Identity() Identity {
	if s.IsZero() {
		return ""
	}
	return Identity(string(s.kind) + ":" + s.url)
}

// Equal reports whether s and o name the same source.
func (s Source) Equal(o Source) bool { return s == o }

func (s Source) String() string {
	switch {
	case s.IsZero():
		return "none"
	case s.IsCamera():
		return "camera"
	default:
		return s.url
	}
}

type sourceJSON struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url,omitempty"`
}

// MarshalJSON renders {"kind":"file","url":...}, {"kind":"camera"}, or null.
func (s Source) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(sourceJSON{Kind: s.kind, URL: s.url})
}

// UnmarshalJSON accepts the MarshalJSON form.
func (s *Source) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Source{}
		return nil
	}
	var raw sourceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case KindCamera:
		*s = Camera()
		return nil
	case KindFile:
		parsed, err := File(raw.URL)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	default:
		return fmt.Errorf("media: unknown source kind %q", raw.Kind)
	}
}
