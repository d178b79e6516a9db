package manifest

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Source is a Fetch target whose Client can be replaced while in use.
type Source struct {
	cur atomic.Pointer[Client]
}

func NewSource(c *Client) *Source {
	s := &Source{}
	s.cur.Store(c)
	return s
}

// Swap installs c for subsequent fetches. In-flight fetches finish on the
// previous client.
func (s *Source) Swap(c *Client) { s.cur.Store(c) }

func (s *Source) Client() *Client { return s.cur.Load() }

func (s *Source) Fetch(ctx context.Context) (*Manifest, error) {
	c := s.cur.Load()
	if c == nil {
		return nil, fmt.Errorf("%w: no client configured", ErrFetch)
	}
	return c.Fetch(ctx)
}
