package identity

import (
	"context"
	"sync"

	"github.com/nutriscan/backend/internal/domain"
)

// Client is one session's view of the Directory. It tracks the signed-in
// principal and notifies subscribers whenever it changes.
type Client struct {
	dir *Directory

	mu        sync.Mutex
	current   *domain.Principal
	listeners map[int]func(*domain.Principal)
	nextID    int
}

// NewClient creates a signed-out client
func NewClient(dir *Directory) *Client {
	return &Client{
		dir:       dir,
		listeners: make(map[int]func(*domain.Principal)),
	}
}

func (c *Client) SignInInteractive(ctx context.Context, idToken string) (*domain.Principal, error) {
	p, err := c.dir.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	c.setCurrent(p)
	return p, nil
}

func (c *Client) SignInWithCredentials(ctx context.Context, email, password string) (*domain.Principal, error) {
	p, err := c.dir.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setCurrent(p)
	return p, nil
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) (*domain.Principal, error) {
	p, err := c.dir.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setCurrent(p)
	return p, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.setCurrent(nil)
	return nil
}

// OnAuthChange calls fn with the current principal, then after every change
func (c *Client) OnAuthChange(fn func(*domain.Principal)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	current := clonePrincipal(c.current)
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Current returns the signed-in principal, or nil
func (c *Client) Current() *domain.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePrincipal(c.current)
}

// setCurrent records p and notifies listeners without holding the lock
func (c *Client) setCurrent(p *domain.Principal) {
	c.mu.Lock()
	c.current = clonePrincipal(p)
	fns := make([]func(*domain.Principal), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(clonePrincipal(p))
	}
}

func clonePrincipal(p *domain.Principal) *domain.Principal {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}
