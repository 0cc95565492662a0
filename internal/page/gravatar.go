// internal/page/gravatar.go
package page

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

const gravatarBase = "https://gravatar.com/avatar/"

// GravatarCache memoizes avatar URLs keyed by lower-cased e-mail.
//
// The cache is append-only and unbounded: its owner (the Builder) keeps it
// for its own lifetime, which spans every run of a watch or serve session.
// Concurrent first writes for the same key compute the same URL, so the race
// is harmless.
type GravatarCache struct {
	urls sync.Map
}

func NewGravatarCache() *GravatarCache {
	return &GravatarCache{}
}

// URL returns the avatar URL for email, or "" for an empty address.
func (c *GravatarCache) URL(email string) string {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return ""
	}
	if v, ok := c.urls.Load(key); ok {
		return v.(string)
	}
	sum := sha256.Sum256([]byte(key))
	url := gravatarBase + hex.EncodeToString(sum[:]) + "?d=robohash"
	actual, _ := c.urls.LoadOrStore(key, url)
	return actual.(string)
}

// Len reports the number of cached addresses.
func (c *GravatarCache) Len() int {
	n := 0
	c.urls.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// EmailFor picks the address used for the avatar: the explicit mail
// attribute wins, otherwise the first author of a comma separated list.
// A bare author handle is treated as a gmail account.
func EmailFor(mail, author string) string {
	if m := strings.TrimSpace(mail); m != "" {
		return m
	}
	first, _, _ := strings.Cut(author, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return ""
	}
	if !strings.Contains(first, "@") {
		first += "@gmail.com"
	}
	return first
}
