// Package ip4route implements the IPv4 route table (spec §4.7): a
// longest-prefix-match table from IPv4 prefix to next-hop index,
// driving refcount changes on the ip4nh table it wraps. The LPM
// representation itself (a plain sorted-prefix scan rather than a
// trie) is an implementation detail left open by the spec; follows
// the shape of a single-writer table that wraps insert/delete/lookup
// around another table and drives refcounts on it, reused here for
// the route/next-hop relationship.
package ip4route

import (
	"sort"

	"inet.af/netaddr"

	"github.com/routerctl/routerctl/ctlerr"
	"github.com/routerctl/routerctl/ip4nh"
)

// entry is one route: a prefix and the next-hop index it resolves to.
type entry struct {
	prefix netaddr.IPPrefix
	nh     ip4nh.Index
}

// Table is the C7 IPv4 route table. It holds a reference to the
// next-hop table it drives, per spec §2's "C7 (C6-dep)".
type Table struct {
	nh      *ip4nh.Table
	entries map[netaddr.IPPrefix]ip4nh.Index
	// sorted caches entries ordered by descending prefix length, for
	// longest-prefix-match lookup; rebuilt lazily on mutation.
	sorted []entry
	dirty  bool
}

// NewTable creates a route table bound to nh.
func NewTable(nh *ip4nh.Table) *Table {
	return &Table{nh: nh, entries: map[netaddr.IPPrefix]ip4nh.Index{}}
}

// InsertRoute implements route_insert (spec §4.7): inserting the same
// prefix with the same index is a no-op; with a different index it
// replaces and decrefs the previous.
func (t *Table) InsertRoute(prefix netaddr.IPPrefix, idx ip4nh.Index) error {
	if existing, ok := t.entries[prefix]; ok {
		if existing == idx {
			return nil
		}
		t.nh.Decref(existing)
	}
	t.entries[prefix] = idx
	t.nh.Incref(idx)
	t.dirty = true
	return nil
}

// DeleteRoute implements route_delete (spec §4.7).
func (t *Table) DeleteRoute(prefix netaddr.IPPrefix) error {
	idx, ok := t.entries[prefix]
	if !ok {
		return ctlerr.New(ctlerr.NotFound, "route %s not found", prefix)
	}
	delete(t.entries, prefix)
	t.nh.Decref(idx)
	t.dirty = true
	return nil
}

// LookupRoute implements route_lookup (spec §4.7): longest-prefix
// match; a miss returns ip4nh.NotFound.
func (t *Table) LookupRoute(addr netaddr.IP) ip4nh.Index {
	t.rebuildIfDirty()
	for _, e := range t.sorted {
		if e.prefix.Contains(addr) {
			return e.nh
		}
	}
	return ip4nh.NotFound
}

func (t *Table) rebuildIfDirty() {
	if !t.dirty {
		return
	}
	t.sorted = t.sorted[:0]
	for prefix, idx := range t.entries {
		t.sorted = append(t.sorted, entry{prefix: prefix, nh: idx})
	}
	sort.Slice(t.sorted, func(i, j int) bool {
		return t.sorted[i].prefix.Bits() > t.sorted[j].prefix.Bits()
	})
	t.dirty = false
}

// AddRoute implements the ip4.route.add request (spec §6): resolve gw
// to an existing next-hop and install prefix pointing at it.
func (t *Table) AddRoute(prefix netaddr.IPPrefix, gw netaddr.IP, existOK bool) error {
	idx := t.nh.Lookup(gw)
	if idx == ip4nh.NotFound {
		return ctlerr.New(ctlerr.NotFound, "gateway %s has no next-hop", gw)
	}
	if existing, ok := t.entries[prefix]; ok {
		if existOK && existing == idx {
			return nil
		}
		return ctlerr.New(ctlerr.Conflict, "route %s already exists", prefix)
	}
	return t.InsertRoute(prefix, idx)
}

// DelRoute implements the ip4.route.del request (spec §6).
func (t *Table) DelRoute(prefix netaddr.IPPrefix, missingOK bool) error {
	if e := t.DeleteRoute(prefix); e != nil {
		if missingOK && ctlerr.Is(e, ctlerr.NotFound) {
			return nil
		}
		return e
	}
	return nil
}

// GetRoute implements the ip4.route.get request (spec §6): resolves
// addr to a next-hop slot, or an ENETUNREACH NotFound error.
func (t *Table) GetRoute(addr netaddr.IP) (*ip4nh.Slot, error) {
	idx := t.LookupRoute(addr)
	if idx == ip4nh.NotFound {
		return nil, ctlerr.NoRoute("no route to %s", addr)
	}
	s, ok := t.nh.GetRef(idx)
	if !ok {
		return nil, ctlerr.NoRoute("no route to %s", addr)
	}
	return s, nil
}

// Route is one entry of List's snapshot, for a bulk-enumeration API
// left to the implementer by spec §4.7.
type Route struct {
	Prefix netaddr.IPPrefix
	NH     ip4nh.Index
}

// List returns a snapshot of all routes.
func (t *Table) List() []Route {
	out := make([]Route, 0, len(t.entries))
	for prefix, idx := range t.entries {
		out = append(out, Route{Prefix: prefix, NH: idx})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix.String() < out[j].Prefix.String() })
	return out
}
