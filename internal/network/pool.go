package network

import "sync/atomic"

// Pool bounds the number of stream connections served at once.
type Pool struct {
	sem    chan struct{}
	max    int
	active atomic.Int64
}

// NewPool creates a pool with size slots (at least one).
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size), max: size}
}

// Acquire takes a slot without blocking. It reports false when the pool is
// full.
func (p *Pool) Acquire() bool {
	select {
	case p.sem <- struct{}{}:
		p.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by a successful Acquire.
func (p *Pool) Release() {
	select {
	case <-p.sem:
		p.active.Add(-1)
	default:
	}
}

// Active is the number of slots in use.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// PoolStats is a point-in-time view of a Pool.
type PoolStats struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Max       int `json:"max"`
}

// Stats reports current usage.
func (p *Pool) Stats() PoolStats {
	active := p.Active()
	return PoolStats{Active: active, Available: p.max - active, Max: p.max}
}
