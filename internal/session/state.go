package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// State is a saved browser session in Playwright's storage-state layout, so
// bundles captured by either tool load in the other.
type State struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

// Cookie is one saved cookie. Expires is seconds since the epoch, or -1
// for a session cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Origin holds the localStorage entries of one origin.
type Origin struct {
	Origin       string  `json:"origin"`
	LocalStorage []Entry `json:"localStorage"`
}

// Entry is a localStorage key/value pair.
type Entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Capture builds a State from live browser cookies and per-origin
// localStorage. Origins and entries are sorted so identical sessions
// serialize identically.
func Capture(cookies []*proto.NetworkCookie, storage map[string]map[string]string) *State {
	state := &State{
		Cookies: make([]Cookie, 0, len(cookies)),
		Origins: make([]Origin, 0, len(storage)),
	}

	for _, c := range cookies {
		expires := float64(c.Expires)
		if c.Session {
			expires = -1
		}
		state.Cookies = append(state.Cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}

	origins := make([]string, 0, len(storage))
	for origin := range storage {
		origins = append(origins, origin)
	}
	sort.Strings(origins)

	for _, origin := range origins {
		entries := storage[origin]
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		o := Origin{Origin: origin, LocalStorage: make([]Entry, 0, len(keys))}
		for _, k := range keys {
			o.LocalStorage = append(o.LocalStorage, Entry{Name: k, Value: entries[k]})
		}
		state.Origins = append(state.Origins, o)
	}

	return state
}

// CookieParams converts saved cookies for installation in a browser.
func (s *State) CookieParams() []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return params
}

// InitScript returns JavaScript that restores each origin's localStorage
// when a page of that origin loads. It is empty when nothing is stored.
func (s *State) InitScript() (string, error) {
	var b strings.Builder
	for _, o := range s.Origins {
		if len(o.LocalStorage) == 0 {
			continue
		}
		entries := make(map[string]string, len(o.LocalStorage))
		for _, e := range o.LocalStorage {
			entries[e.Name] = e.Value
		}

		origin, err := json.Marshal(o.Origin)
		if err != nil {
			return "", err
		}
		values, err := json.Marshal(entries)
		if err != nil {
			return "", err
		}

		fmt.Fprintf(&b, "if (location.origin === %s) { for (const [k, v] of Object.entries(%s)) { try { localStorage.setItem(k, v) } catch (e) {} } }\n", origin, values)
	}
	return b.String(), nil
}

// Expiry reports the earliest expiry among persistent cookies and how many
// of them are already past now. The time is zero when every cookie lives
// for the browser session only.
func (s *State) Expiry(now time.Time) (earliest time.Time, expired int) {
	for _, c := range s.Cookies {
		if c.Expires <= 0 {
			continue
		}
		t := time.Unix(int64(c.Expires), 0).UTC()
		if t.Before(now) {
			expired++
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	return earliest, expired
}
