package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// FileJar is a cookie jar that also writes the cookies set by one origin to
// a file, so the ambient refresh credential survives process restarts the
// way a browser cookie does. Cookies for other hosts stay in memory.
type FileJar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	path   string
	origin *url.URL
	saved  map[string]storedCookie
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// NewFileJar loads any cookies previously saved at path for origin.
func NewFileJar(path, origin string) (*FileJar, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid cookie origin %q", origin)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	j := &FileJar{jar: jar, path: path, origin: u, saved: make(map[string]storedCookie)}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if u.Host != j.origin.Host {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(j.saved, c.Name)
			continue
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.saved[c.Name] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
	if err := j.persistLocked(); err != nil {
		log.Warn().Err(err).Str("path", j.path).Msg("failed to persist cookies")
	}
}

// Clear forgets every saved cookie and removes the file.
func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	expired := make([]*http.Cookie, 0, len(j.saved))
	for _, c := range j.saved {
		expired = append(expired, &http.Cookie{Name: c.Name, Path: c.Path, Domain: c.Domain, MaxAge: -1})
	}
	j.jar.SetCookies(j.origin, expired)
	j.saved = make(map[string]storedCookie)
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cookie file: %w", err)
	}
	return nil
}

func (j *FileJar) load() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cookie file: %w", err)
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode cookie file: %w", err)
	}

	now := time.Now()
	restore := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		j.saved[c.Name] = c
		restore = append(restore, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	j.jar.SetCookies(j.origin, restore)
	return nil
}

func (j *FileJar) persistLocked() error {
	stored := make([]storedCookie, 0, len(j.saved))
	for _, c := range j.saved {
		stored = append(stored, c)
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return err
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, j.path)
}
