package dispatch

import (
	"sync"

	"slackhooks/models"
	"slackhooks/utils"
)

// Next continues the chain with a possibly transformed Context
type Next func(c *Context) (*models.Response, error)

// Middleware wraps the rest of the chain. It may return its own response without
// calling next, or return an error to abort the chain.
type Middleware func(c *Context, next Next) (*models.Response, error)

// Chain is an ordered list of middleware run around a final Next
type Chain struct {
	mu          sync.RWMutex
	frozen      bool
	middlewares []Middleware
}

func NewChain(middlewares ...Middleware) *Chain {
	chain := &Chain{}
	for _, m := range middlewares {
		chain.Use(m)
	}
	return chain
}

// Use appends m; the first registered middleware runs outermost
func (ch *Chain) Use(m Middleware) {
	utils.AssertInvariant(m != nil, "middleware cannot be nil")
	ch.mu.Lock()
	defer ch.mu.Unlock()
	utils.AssertInvariant(!ch.frozen, "middleware cannot be added after the chain is frozen")
	ch.middlewares = append(ch.middlewares, m)
}

func (ch *Chain) Freeze() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.frozen = true
}

func (ch *Chain) Len() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.middlewares)
}

// Run executes the middleware in registration order, ending with final
func (ch *Chain) Run(c *Context, final Next) (*models.Response, error) {
	ch.mu.RLock()
	middlewares := ch.middlewares
	ch.mu.RUnlock()

	var step func(i int) Next
	step = func(i int) Next {
		if i == len(middlewares) {
			return final
		}
		return func(c *Context) (*models.Response, error) {
			return middlewares[i](c, step(i+1))
		}
	}
	return step(0)(c)
}
