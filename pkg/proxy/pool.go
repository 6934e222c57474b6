package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when marking a proxy the pool never handed out.
	ErrNotFound = errors.New("proxy: not found in pool")
	// ErrEmpty is returned by Next when the pool holds no proxies.
	ErrEmpty = errors.New("proxy: pool is empty")
	// ErrExhausted is returned by Next while every proxy is benched.
	ErrExhausted = errors.New("proxy: every proxy is benched")
)

// Proxy is one pooled endpoint with its health counters.
type Proxy struct {
	URL          *url.URL
	Failures     int // consecutive, decremented by successes
	Successes    int
	LastUsed     time.Time
	BenchedUntil time.Time
}

func (p *Proxy) healthy(now time.Time) bool {
	return !now.Before(p.BenchedUntil)
}

// Pool rotates through proxies round-robin, benching the ones that keep
// failing so a blocked exit is not retried on the very next page.
type Pool struct {
	mu          sync.Mutex
	proxies     []*Proxy
	byKey       map[string]*Proxy
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures before benching a proxy. Defaults to 3.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out. Defaults to 5m.
	Cooldown time.Duration
}

// NewPool creates a new proxy pool. Zero config values take the defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		byKey:       make(map[string]*Proxy),
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile reads proxies from a file, one URL per line. Blank lines and
// lines starting with '#' are skipped.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: open list: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read list: %w", err)
	}

	return p.Add(urls...)
}

// Add parses raw proxy strings and appends them to the rotation. Nothing is
// added if any entry is invalid; duplicates are ignored.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*url.URL, 0, len(rawURLs))
	for _, raw := range rawURLs {
		u, err := Parse(raw)
		if err != nil {
			return err
		}
		parsed = append(parsed, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range parsed {
		key := u.String()
		if _, dup := p.byKey[key]; dup {
			continue
		}
		prx := &Proxy{URL: u}
		p.proxies = append(p.proxies, prx)
		p.byKey[key] = prx
	}
	return nil
}

// Len reports how many proxies the pool holds, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Healthy reports how many proxies are currently available.
func (p *Pool) Healthy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, prx := range p.proxies {
		if prx.healthy(now) {
			n++
		}
	}
	return n
}

// Next returns the next healthy proxy in rotation. It fails with ErrEmpty or
// ErrExhausted rather than returning no proxy, so callers never silently
// fall back to a direct connection.
func (p *Pool) Next() (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return nil, ErrEmpty
	}

	now := p.now()
	var soonest time.Time
	for range len(p.proxies) {
		prx := p.proxies[p.next]
		p.next = (p.next + 1) % len(p.proxies)

		if prx.healthy(now) {
			if !prx.BenchedUntil.IsZero() {
				prx.BenchedUntil = time.Time{}
				prx.Failures = 0
			}
			prx.LastUsed = now
			return prx.URL, nil
		}
		if soonest.IsZero() || prx.BenchedUntil.Before(soonest) {
			soonest = prx.BenchedUntil
		}
	}
	return nil, fmt.Errorf("%w until %s", ErrExhausted, soonest.Format(time.RFC3339))
}

// MarkSuccess records a successful page fetch through proxyURL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	prx, unlock, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	defer unlock()

	prx.Successes++
	if prx.Failures > 0 {
		prx.Failures--
	}
	return nil
}

// MarkFailure records a failed or blocked page fetch through proxyURL. The
// proxy is benched for the cooldown once it reaches MaxFailures.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	prx, unlock, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	defer unlock()

	prx.Failures++
	if prx.Failures >= p.maxFailures {
		prx.BenchedUntil = p.now().Add(p.cooldown)
	}
	return nil
}

// lookup returns the pooled proxy with the pool locked on success.
func (p *Pool) lookup(u *url.URL) (*Proxy, func(), error) {
	if u == nil {
		return nil, nil, errors.New("proxy: proxyURL cannot be nil")
	}
	p.mu.Lock()
	prx, ok := p.byKey[u.String()]
	if !ok {
		p.mu.Unlock()
		return nil, nil, ErrNotFound
	}
	return prx, p.mu.Unlock, nil
}
