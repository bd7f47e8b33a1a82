package github

import (
	"sync"

	"golang.org/x/time/rate"
)

// ClientSource hands out a GitHub client per API endpoint and token.
type ClientSource interface {
	For(baseURL, token string) (GitHub, error)
}

type poolKey struct {
	baseURL string
	token   string
}

// Pool caches one Client per (baseURL, token). All clients share a single
// request limiter.
type Pool struct {
	clients map[poolKey]*Client
	limiter *rate.Limiter
	mu      sync.Mutex
	opts    Options
}

var _ ClientSource = &Pool{}

func NewPool(opts Options) *Pool {
	return &Pool{
		clients: make(map[poolKey]*Client),
		limiter: newLimiter(opts.RequestsPerSecond),
		opts:    opts,
	}
}

func (p *Pool) For(baseURL, token string) (GitHub, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey{baseURL: baseURL, token: token}
	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	c, err := newClient(baseURL, token, p.opts.Timeout, p.limiter)
	if err != nil {
		return nil, err
	}
	p.clients[key] = c
	return c, nil
}
