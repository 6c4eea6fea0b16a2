// Package ctlapi implements the API dispatch surface (spec §4.8): a
// map from request-kind strings to handlers, plus the concrete
// handlers wiring the port, interface, VLAN, next-hop, and route
// components together. The wire transport and serialization framing
// are out of scope (spec §1); this package stops at a Go-native
// (context.Context, json.RawMessage) -> (any, error) boundary, which
// mgmtgql adapts to GraphQL; cmd/routerctl reaches it through that
// GraphQL endpoint.
//
// Follows the shape of a management layer that maps RPC service
// methods to internal component calls one-to-one; here the mapping is
// a runtime table instead of generated gRPC stubs, matching spec
// §4.8's "map from request-kind integers to handlers ... registration
// is one-shot at process init".
package ctlapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/routerctl/routerctl/ctlerr"
)

// Handler serves one request kind. It receives the raw request body
// and returns either a response value (marshaled by the caller) or an
// error (expected to be a *ctlerr.Error so its Kind/Errno survive to
// the transport boundary).
type Handler func(ctx context.Context, req json.RawMessage) (any, error)

// Dispatcher is the C8 API dispatch surface: request-kind string to
// Handler, with one-shot registration (spec §4.8).
type Dispatcher struct {
	handlers map[string]Handler
	// mu serializes Dispatch, so handlers run one at a time even when a
	// transport (mgmtgql behind net/http) calls in from several goroutines.
	mu sync.Mutex
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[string]Handler{}}
}

// Register installs h for kind. It panics on a duplicate registration:
// spec §4.8 says registration is one-shot at process init, so a
// collision is a programming error, not a runtime condition to
// recover from.
func (d *Dispatcher) Register(kind string, h Handler) {
	if _, exists := d.handlers[kind]; exists {
		panic(fmt.Sprintf("ctlapi: handler for %q already registered", kind))
	}
	d.handlers[kind] = h
}

// Dispatch routes req to kind's handler. An unknown kind is a
// Validation error, per spec §7's taxonomy. Calls are serialized: one
// handler runs at a time.
func (d *Dispatcher) Dispatch(ctx context.Context, kind string, req json.RawMessage) (any, error) {
	h, ok := d.handlers[kind]
	if !ok {
		return nil, ctlerr.New(ctlerr.Validation, "unknown request kind %q", kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return h(ctx, req)
}

// Kinds returns the set of registered request kinds, for
// introspection (e.g. a GraphQL schema builder).
func (d *Dispatcher) Kinds() []string {
	out := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	return out
}
