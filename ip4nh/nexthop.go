// Package ip4nh implements the IPv4 next-hop table (spec §4.6): a
// dense array of slots addressed by stable index, paired with an
// address-to-index hash, refcounted so the route table (ip4route) and
// datapath graph nodes can reference next-hops without owning
// pointers. Follows the arena+index+secondary-index pattern (spec §9)
// used by dense FIB-style tables with a single writer. Table has no
// locking or command channel of its own; writers are serialized by the
// caller (ctlapi.Dispatcher runs one request at a time).
package ip4nh

import (
	"time"

	"inet.af/netaddr"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/ctlerr"
	"github.com/routerctl/routerctl/iface"
)

// Index is a stable handle into the next-hop array. Routes and
// datapath graph nodes store this, never a pointer, so table
// reconfiguration can never dangle a reference (spec §9).
type Index uint32

// NotFound is returned by Lookup when the address has no slot.
const NotFound Index = 0xffffffff

// Flag is a bit in Slot.Flags (spec §3 "Next-hop slot").
type Flag uint8

// Next-hop slot flags.
const (
	FlagStatic Flag = 1 << iota
	FlagReachable
	FlagLocal
	FlagLink
	FlagGateway
	FlagPending
)

// Slot is one next-hop entry. The datapath reads slots without
// locking; the control plane, being single-threaded, is the only
// writer, and replaces a slot wholesale only on the 1→0 refcount
// transition (spec §5).
type Slot struct {
	IP       netaddr.IP
	MAC      macaddr.Addr
	IfaceID  iface.ID
	Flags    Flag
	RefCount uint32
	LastSeen time.Time
}

// occupied reports whether s holds a live entry, per spec §8's
// invariant "occupied(slot) ⇔ (hash_contains(slot.ip) ∧ ref_count≥1)".
func (s *Slot) occupied() bool { return s.RefCount >= 1 }

// Reachable reports whether the slot is currently confirmed reachable.
func (s *Slot) Reachable() bool { return s.Flags&FlagReachable != 0 }

// Age returns how long ago the slot was last confirmed reachable, and
// whether that value is meaningful. Per spec §9's third open question,
// age is only defined for a slot that has been confirmed reachable at
// least once; a slot that was never confirmed carries no age.
func (s *Slot) Age(now time.Time) (age time.Duration, valid bool) {
	if !s.Reachable() || s.LastSeen.IsZero() {
		return 0, false
	}
	return now.Sub(s.LastSeen), true
}

// Table is the C6 next-hop table: a dense array paired with an
// address-to-index hash. It is explicit state (spec §9), constructed
// once and passed to ip4route and the API layer.
type Table struct {
	slots []Slot
	free  []Index
	byIP  map[netaddr.IP]Index
}

// NewTable creates an empty next-hop table.
func NewTable() *Table {
	return &Table{byIP: map[netaddr.IP]Index{}}
}

// Lookup returns the slot index for ip, or NotFound.
func (t *Table) Lookup(ip netaddr.IP) Index {
	if idx, ok := t.byIP[ip]; ok {
		return idx
	}
	return NotFound
}

// LookupOrInsert returns ip's existing slot index, or allocates a new
// empty slot (refcount 0, IP set, caller populates the rest), per
// spec §4.6.
func (t *Table) LookupOrInsert(ip netaddr.IP) Index {
	if idx, ok := t.byIP[ip]; ok {
		return idx
	}

	var idx Index
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[idx] = Slot{IP: ip}
	} else {
		idx = Index(len(t.slots))
		t.slots = append(t.slots, Slot{IP: ip})
	}
	t.byIP[ip] = idx
	return idx
}

// Get returns the slot at idx without a bounds check, for the
// datapath's line-rate lookup path (spec §4.6's "get(idx) -> &slot (no
// bounds check; datapath only)"). The control plane should use GetRef
// instead.
func (t *Table) Get(idx Index) *Slot {
	return &t.slots[idx]
}

// GetRef is Get with a bounds check, for control-plane callers.
func (t *Table) GetRef(idx Index) (*Slot, bool) {
	if int(idx) < 0 || int(idx) >= len(t.slots) {
		return nil, false
	}
	return &t.slots[idx], true
}

// Incref increments idx's refcount.
func (t *Table) Incref(idx Index) {
	t.slots[idx].RefCount++
}

// Decref decrements idx's refcount; on a 1→0 transition it erases the
// hash entry and zeroes the slot, freeing it for reuse, per spec
// §4.6's "decrementing from 1→0 erases the hash entry and zeroes the
// slot".
func (t *Table) Decref(idx Index) {
	s := &t.slots[idx]
	if s.RefCount == 0 {
		return
	}
	s.RefCount--
	if s.RefCount == 0 {
		t.releaseEmpty(idx)
	}
}

// releaseEmpty erases idx's hash entry and frees its slot for reuse.
// Callers must hold idx's only reference to it (refcount 0), e.g.
// Decref's 1→0 transition, or a rollback of a slot LookupOrInsert just
// allocated that never reached refcount 1.
func (t *Table) releaseEmpty(idx Index) {
	s := &t.slots[idx]
	delete(t.byIP, s.IP)
	*s = Slot{}
	t.free = append(t.free, idx)
}

// routeInserter is the minimal surface ip4nh needs from ip4route to
// install the implicit /32 route created by AddNextHop (spec §4.6:
// "call route_insert(host, /32, idx)"), named locally to avoid an
// import cycle between ip4nh and ip4route.
type routeInserter interface {
	InsertRoute(prefix netaddr.IPPrefix, idx Index) error
}

// routeDeleter is the minimal surface ip4nh needs to remove the
// implicit /32 route on DelNextHop.
type routeDeleter interface {
	DeleteRoute(prefix netaddr.IPPrefix) error
}

// AddNextHop implements the ip4.nh.add request (spec §4.6 "API: add
// next-hop", spec §6).
func (t *Table) AddNextHop(routes routeInserter, host netaddr.IP, ifaceID iface.ID, mac macaddr.Addr, existOK bool) (Index, error) {
	if host.IsZero() {
		return NotFound, ctlerr.New(ctlerr.Validation, "next-hop address must not be zero")
	}

	if existing, ok := t.byIP[host]; ok {
		s := &t.slots[existing]
		if existOK && s.IfaceID == ifaceID && s.MAC == mac {
			return existing, nil
		}
		return NotFound, ctlerr.New(ctlerr.Conflict, "next-hop %s already exists", host)
	}

	idx := t.LookupOrInsert(host)
	s := &t.slots[idx]
	s.IfaceID = ifaceID
	s.MAC = mac
	s.Flags = FlagStatic | FlagReachable
	s.LastSeen = time.Now()

	prefix := netaddr.IPPrefixFrom(host, host.BitLen())
	if e := routes.InsertRoute(prefix, idx); e != nil {
		// idx was just allocated by LookupOrInsert above and never
		// reached refcount 1, so Decref's "RefCount==0 -> return"
		// early exit would leak it; release it directly instead.
		t.releaseEmpty(idx)
		return NotFound, e
	}
	return idx, nil
}

// DelNextHop implements the ip4.nh.del request (spec §4.6 "API: del
// next-hop", spec §6). Route deletion is responsible for calling
// Decref, which frees the slot once its refcount reaches zero.
func (t *Table) DelNextHop(routes routeDeleter, host netaddr.IP, missingOK bool) error {
	idx, ok := t.byIP[host]
	if !ok {
		if missingOK {
			return nil
		}
		return ctlerr.New(ctlerr.NotFound, "next-hop %s not found", host)
	}

	s := &t.slots[idx]
	if s.Flags&(FlagLocal|FlagLink) != 0 {
		return ctlerr.New(ctlerr.Busy, "next-hop %s carries an implicit LOCAL/LINK reference", host)
	}
	if s.RefCount > 1 {
		return ctlerr.New(ctlerr.Busy, "next-hop %s has %d references", host, s.RefCount)
	}

	prefix := netaddr.IPPrefixFrom(host, host.BitLen())
	return routes.DeleteRoute(prefix)
}

// List returns every occupied slot's index, for the ip4.nh.list
// request (spec §6).
func (t *Table) List() []Index {
	var out []Index
	for idx := range t.slots {
		if t.slots[idx].occupied() {
			out = append(out, Index(idx))
		}
	}
	return out
}
