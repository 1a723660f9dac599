package request

// Registry maps tokens to requests and remembers issue order.
//
// Registry is owned by the coordinator's event loop and is not safe for
// concurrent use.
type Registry struct {
	order   []*Request
	byToken map[Token]*Request
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byToken: make(map[Token]*Request)}
}

// Put stores r. A request already stored under the same token is replaced
// and r becomes the most recent entry. The replaced request is returned.
func (g *Registry) Put(r *Request) *Request {
	prev := g.Remove(r.Token)
	g.order = append(g.order, r)
	g.byToken[r.Token] = r
	return prev
}

// Get returns the request for token, or nil.
func (g *Registry) Get(token Token) *Request {
	return g.byToken[token]
}

// Remove deletes and returns the request for token, or nil.
func (g *Registry) Remove(token Token) *Request {
	r, ok := g.byToken[token]
	if !ok {
		return nil
	}
	delete(g.byToken, token)
	for i, o := range g.order {
		if o == r {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return r
}

// Top returns the most recently issued live request, or nil.
func (g *Registry) Top() *Request {
	for i := len(g.order) - 1; i >= 0; i-- {
		if g.order[i].IsLive() {
			return g.order[i]
		}
	}
	return nil
}

// Live returns the live requests in issue order.
func (g *Registry) Live() []*Request {
	out := make([]*Request, 0, len(g.order))
	for _, r := range g.order {
		if r.IsLive() {
			out = append(out, r)
		}
	}
	return out
}

// ByClient returns the live requests issued by client, in issue order.
func (g *Registry) ByClient(client ClientID) []*Request {
	var out []*Request
	for _, r := range g.order {
		if r.Client == client && r.IsLive() {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of stored requests.
func (g *Registry) Len() int {
	return len(g.order)
}
