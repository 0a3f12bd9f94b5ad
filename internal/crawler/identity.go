package crawler

import (
	"math/rand/v2"
	"net/http"
)

// DefaultUserAgents is the rotation pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36",
}

// IdentityPool hands out a client identity per attempt.
type IdentityPool struct {
	agents []string
}

// NewIdentityPool copies agents, falling back to DefaultUserAgents.
func NewIdentityPool(agents []string) *IdentityPool {
	pool := make([]string, 0, len(agents))
	for _, a := range agents {
		if a != "" {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		pool = append(pool, DefaultUserAgents...)
	}
	return &IdentityPool{agents: pool}
}

// Pick returns one user agent chosen uniformly at random.
func (p *IdentityPool) Pick() string {
	return p.agents[rand.IntN(len(p.agents))]
}

// Headers builds the request headers sent with every attempt.
func (p *IdentityPool) Headers() http.Header {
	return http.Header{
		"User-Agent":      {p.Pick()},
		"Accept-Language": {"en-US,en;q=0.9"},
	}
}
