package adlib

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultUserAgents spans Chrome, Firefox and Safari on Windows and macOS.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// UserAgentPool hands out a browser identity per session.
// It is safe for concurrent use.
type UserAgentPool struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	agents []string
}

// NewUserAgentPool creates a pool over DefaultUserAgents. A nil rnd is
// replaced with a time-seeded source; tests pass a fixed seed.
func NewUserAgentPool(rnd *rand.Rand) *UserAgentPool {
	return NewUserAgentPoolFrom(DefaultUserAgents, rnd)
}

// NewUserAgentPoolFrom creates a pool over a custom agent list. An empty
// list falls back to DefaultUserAgents.
func NewUserAgentPoolFrom(agents []string, rnd *rand.Rand) *UserAgentPool {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &UserAgentPool{rnd: rnd, agents: append([]string(nil), agents...)}
}

// Pick returns one agent chosen uniformly at random.
func (p *UserAgentPool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rnd.Intn(len(p.agents))]
}

// Agents returns a copy of the pool contents.
func (p *UserAgentPool) Agents() []string {
	return append([]string(nil), p.agents...)
}
