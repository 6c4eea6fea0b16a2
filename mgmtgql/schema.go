// Package mgmtgql exposes the control plane over GraphQL, built on
// graphql-go/graphql's schema builder wired to the dispatch surface
// rather than reusing any prior scalar-type glue, which tends to
// accumulate incompatible historical generations across rewrites.
package mgmtgql

import (
	"context"
	"encoding/json"

	"github.com/graphql-go/graphql"

	"github.com/routerctl/routerctl/ctlapi"
)

// macAddrType renders a macaddr.Addr as its string form.
var macAddrType = graphql.String

var portType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Port",
	Fields: graphql.Fields{
		"name":    &graphql.Field{Type: graphql.String},
		"portId":  &graphql.Field{Type: graphql.Int},
		"devArgs": &graphql.Field{Type: graphql.String},
		"mac":     &graphql.Field{Type: macAddrType},
		"mtu":     &graphql.Field{Type: graphql.Int},
		"up":      &graphql.Field{Type: graphql.Boolean},
		"running": &graphql.Field{Type: graphql.Boolean},
		"nRxq":    &graphql.Field{Type: graphql.Int},
		"nTxq":    &graphql.Field{Type: graphql.Int},
		"rxqSize": &graphql.Field{Type: graphql.Int},
		"txqSize": &graphql.Field{Type: graphql.Int},
	},
})

var nextHopType = graphql.NewObject(graphql.ObjectConfig{
	Name: "NextHop",
	Fields: graphql.Fields{
		"host":     &graphql.Field{Type: graphql.String},
		"mac":      &graphql.Field{Type: macAddrType},
		"ifaceId":  &graphql.Field{Type: graphql.Int},
		"refCount": &graphql.Field{Type: graphql.Int},
		"ageSec":   &graphql.Field{Type: graphql.Float},
		"ageValid": &graphql.Field{Type: graphql.Boolean},
	},
})

// toFieldMap round-trips v through JSON into a map, so graphql-go's
// default resolver (field-name lookup on a map) can serve any of this
// module's API DTOs without per-type hand-written resolvers.
func toFieldMap(v any) (map[string]any, error) {
	b, e := json.Marshal(v)
	if e != nil {
		return nil, e
	}
	var m map[string]any
	if e := json.Unmarshal(b, &m); e != nil {
		return nil, e
	}
	return m, nil
}

func toFieldMapList(v any) ([]map[string]any, error) {
	b, e := json.Marshal(v)
	if e != nil {
		return nil, e
	}
	var raw []json.RawMessage
	if e := json.Unmarshal(b, &raw); e != nil {
		return nil, e
	}
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		var m map[string]any
		if e := json.Unmarshal(r, &m); e != nil {
			return nil, e
		}
		out = append(out, m)
	}
	return out, nil
}

// NewSchema builds the GraphQL schema backing the management endpoint,
// dispatching every query and mutation through d so the GraphQL layer
// and the CLI layer (cmd/routerctl) share one code path for actually
// mutating control-plane state.
func NewSchema(d *ctlapi.Dispatcher) (graphql.Schema, error) {
	dispatch := func(kind string, args map[string]any) (any, error) {
		body, e := json.Marshal(args)
		if e != nil {
			return nil, e
		}
		return d.Dispatch(context.Background(), kind, body)
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"port": &graphql.Field{
				Type: portType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					res, e := dispatch("port.get", map[string]any{"name": p.Args["name"]})
					if e != nil {
						return nil, e
					}
					return toFieldMap(res)
				},
			},
			"ports": &graphql.Field{
				Type: graphql.NewList(portType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					res, e := dispatch("port.list", nil)
					if e != nil {
						return nil, e
					}
					return toFieldMapList(res)
				},
			},
			"nextHops": &graphql.Field{
				Type: graphql.NewList(nextHopType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					res, e := dispatch("ip4.nh.list", nil)
					if e != nil {
						return nil, e
					}
					return toFieldMapList(res)
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"portAdd": &graphql.Field{
				Type: portType,
				Args: graphql.FieldConfigArgument{
					"devArgs": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"name":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					res, e := dispatch("port.add", map[string]any{
						"devargs": p.Args["devArgs"],
						"name":    p.Args["name"],
					})
					if e != nil {
						return nil, e
					}
					return toFieldMap(res)
				},
			},
			"portDel": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if _, e := dispatch("port.del", map[string]any{"name": p.Args["name"]}); e != nil {
						return false, e
					}
					return true, nil
				},
			},
			"nextHopAdd": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"host":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"ifaceId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"mac":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"existOk": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					_, e := dispatch("ip4.nh.add", map[string]any{
						"host":    p.Args["host"],
						"ifaceId": p.Args["ifaceId"],
						"mac":     p.Args["mac"],
						"existOk": p.Args["existOk"],
					})
					return e == nil, e
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}
