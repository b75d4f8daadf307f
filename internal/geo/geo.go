package geo

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ip2location/ip2location-go/v9"
)

// DefaultCacheSize is the number of resolved addresses kept in memory.
const DefaultCacheSize = 65536

// ErrNoDatabase is returned by Open when the database path is empty.
var ErrNoDatabase = errors.New("no location database configured")

// source is the subset of *ip2location.DB the Locator needs.
type source interface {
	Get_all(ipaddress string) (ip2location.IP2Locationrecord, error) //nolint:revive // ip2location naming
	Close()
}

// Locator resolves IP addresses to locations. It is safe for concurrent use.
// A nil *Locator is valid and resolves nothing.
type Locator struct {
	mu    sync.Mutex
	db    source
	cache *lru.Cache[netip.Addr, string]
}

// Option configures a Locator.
type Option func(*options)

type options struct {
	cacheSize int
}

// WithCacheSize sets the number of memoised lookups. Values below 1 are ignored.
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// Open opens the IP2Location database at path.
// It returns ErrNoDatabase if path is empty.
func Open(path string, opts ...Option) (*Locator, error) {
	if path == "" {
		return nil, ErrNoDatabase
	}

	db, err := ip2location.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open location database %s: %w", path, err)
	}

	return newLocator(db, opts...)
}

// newLocator wraps an already opened source.
func newLocator(db source, opts ...Option) (*Locator, error) {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	cache, err := lru.New[netip.Addr, string](o.cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create location cache: %w", err)
	}

	return &Locator{db: db, cache: cache}, nil
}

// Lookup returns "country, region, city" for ip, or "" if the location is
// unknown or lookup is disabled.
func (l *Locator) Lookup(ip netip.Addr) string {
	if l == nil || !ip.IsValid() {
		return ""
	}
	ip = ip.Unmap()

	if loc, ok := l.cache.Get(ip); ok {
		return loc
	}

	l.mu.Lock()
	db := l.db
	if db == nil {
		l.mu.Unlock()
		return ""
	}
	record, err := db.Get_all(ip.String())
	l.mu.Unlock()

	loc := ""
	if err == nil {
		loc = format(record)
	}
	l.cache.Add(ip, loc)
	return loc
}

// format renders a record the way the node list files expect it.
func format(r ip2location.IP2Locationrecord) string {
	if r.Country_long == "" && r.Region == "" && r.City == "" {
		return ""
	}
	// Lookups outside the database's coverage come back as "-".
	if r.Country_long == "-" {
		return ""
	}
	return strings.Join([]string{r.Country_long, r.Region, r.City}, ", ")
}

// Close releases the database. Lookups after Close return "".
func (l *Locator) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db != nil {
		l.db.Close()
		l.db = nil
		l.cache.Purge()
	}
	return nil
}
