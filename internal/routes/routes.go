// Package routes maps the address a message arrived on (a Twilio number, a Facebook page or an
// Instagram business account) to the deployment that answers it.
package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// ErrNoRoute is returned when neither a route nor a default deployment matches.
var ErrNoRoute = errors.New("no route for address")

// Route binds one channel address to a deployment.
type Route struct {
	Channel models.Channel `mapstructure:"channel"`
	Address string         `mapstructure:"address"`
	UserID  string         `mapstructure:"user_id"`
	// AccessToken is the Graph API page token for Messenger and Instagram routes.
	AccessToken string `mapstructure:"access_token"`
}

type file struct {
	DefaultUserID string  `mapstructure:"default_user_id"`
	Routes        []Route `mapstructure:"routes"`
}

// Table resolves routes. It is safe for concurrent use.
type Table struct {
	mu            sync.RWMutex
	routes        map[string]Route
	defaultUserID string
}

// New builds a table. defaultUserID answers addresses without a route; empty disables the fallback.
func New(defaultUserID string, routes ...Route) *Table {
	t := &Table{routes: make(map[string]Route, len(routes)), defaultUserID: defaultUserID}
	for _, r := range routes {
		t.Add(r)
	}
	return t
}

// Load reads a YAML (or any viper-supported) routes file:
//
//	default_user_id: 65f0c2...
//	routes:
//	  - channel: whatsapp
//	    address: "+15550001111"
//	    user_id: 65f0c2...
//	  - channel: messenger
//	    address: "1029384756"
//	    user_id: 71aa90...
//	    access_token: EAAG...
func Load(path string) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode routes file: %w", err)
	}
	for i, r := range f.Routes {
		if _, err := models.ParseChannel(string(r.Channel)); err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		if strings.TrimSpace(r.Address) == "" || strings.TrimSpace(r.UserID) == "" {
			return nil, fmt.Errorf("route %d: address and user_id are required", i)
		}
	}
	slog.Info("routes.Load: routes loaded", "path", path, "count", len(f.Routes), "hasDefault", f.DefaultUserID != "")
	return New(f.DefaultUserID, f.Routes...), nil
}

// Add inserts or replaces a route.
func (t *Table) Add(r Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[key(r.Channel, r.Address)] = r
}

// Lookup returns the route for an address, or a route to the default deployment.
func (t *Table) Lookup(ch models.Channel, address string) (Route, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r, ok := t.routes[key(ch, address)]; ok {
		return r, nil
	}
	if t.defaultUserID != "" {
		return Route{Channel: ch, Address: address, UserID: t.defaultUserID}, nil
	}
	return Route{}, fmt.Errorf("%w: %s %s", ErrNoRoute, ch, address)
}

// Len is the number of explicit routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

func key(ch models.Channel, address string) string {
	return strings.ToLower(string(ch)) + "|" + Normalize(address)
}

// Normalize drops a channel prefix and the punctuation people put in phone numbers.
func Normalize(address string) string {
	a := strings.TrimSpace(address)
	if i := strings.Index(a, ":"); i >= 0 {
		a = a[i+1:]
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, a)
}
