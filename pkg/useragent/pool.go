package useragent

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync/atomic"
)

// Provider hands out the User-Agent identity for one outbound request.
// Implementations must be safe for concurrent use.
type Provider interface {
	Next() string
}

// DesktopPool is a fixed set of desktop browser User-Agents for callers that
// prefer a static list over generated mobile identities.
var DesktopPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.6; rv:129.0) Gecko/20100101 Firefox/129.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36 Edg/128.0.0.0",
}

// Pool serves User-Agents from a fixed list, at random unless built with
// NewRoundRobin.
type Pool struct {
	uas        []string
	roundRobin bool
	counter    atomic.Uint64
}

var _ Provider = (*Pool)(nil)

// NewPool returns a Pool picking uniformly at random. An empty list falls
// back to DesktopPool.
func NewPool(uas []string) *Pool {
	if len(uas) == 0 {
		uas = DesktopPool
	}
	return &Pool{uas: append([]string(nil), uas...)}
}

// NewRoundRobin returns a Pool cycling through uas in order.
func NewRoundRobin(uas []string) *Pool {
	p := NewPool(uas)
	p.roundRobin = true
	return p
}

// LoadFile reads one User-Agent per line into a random Pool, or a
// round-robin one when sequential is set. Blank lines and lines starting
// with '#' are skipped.
func LoadFile(path string, sequential bool) (*Pool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("useragent: open list: %w", err)
	}
	defer file.Close()

	var uas []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uas = append(uas, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("useragent: read list: %w", err)
	}
	if len(uas) == 0 {
		return nil, fmt.Errorf("useragent: no entries in %s", path)
	}
	if sequential {
		return NewRoundRobin(uas), nil
	}
	return NewPool(uas), nil
}

// Len reports the number of User-Agents in the pool.
func (p *Pool) Len() int { return len(p.uas) }

// Next implements Provider.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	if p.roundRobin {
		idx := p.counter.Add(1) - 1
		return p.uas[idx%uint64(len(p.uas))]
	}
	return p.uas[rand.IntN(len(p.uas))]
}

// Static always returns the same User-Agent. Useful for tests and for pinning
// an identity from configuration.
type Static string

// Next implements Provider.
func (s Static) Next() string { return string(s) }
