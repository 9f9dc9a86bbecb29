package useragent

import (
	"net/http"
	"sync/atomic"
)

// DefaultPool is a small set of current desktop browser User-Agents.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
}

// DefaultAcceptLanguage matches the audience of the Swiss listing sites.
const DefaultAcceptLanguage = "de-CH,de;q=0.9,en;q=0.5"

// Pool hands out User-Agents round-robin and decorates outgoing requests
// with browser-like headers.
type Pool struct {
	uas            []string
	acceptLanguage string
	counter        atomic.Uint64
}

// NewPool creates a pool. An empty uas falls back to DefaultPool.
func NewPool(uas []string) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{
		uas:            copied,
		acceptLanguage: DefaultAcceptLanguage,
	}
}

// Next returns the next User-Agent.
func (p *Pool) Next() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Apply sets User-Agent, Accept and Accept-Language on req.
func (p *Pool) Apply(req *http.Request) {
	req.Header.Set("User-Agent", p.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", p.acceptLanguage)
}

// Len returns the number of User-Agents in the pool.
func (p *Pool) Len() int {
	return len(p.uas)
}
