// Package iface implements the interface registry (spec §4.1) and the
// interface type dispatch table (spec §4.2): a dense table of
// interfaces addressed by a stable 16-bit id, plus a closed set of
// per-type descriptors (Port, Vlan) that the registry dispatches
// lifecycle calls to.
//
// Follows the shape of a dense id-indexed table with typed iteration,
// generalized here to router interfaces, with the vtable-of-
// function-pointers dispatch pattern (spec §9 "Polymorphic interface
// types") reshaped as a closed Go interface implemented once per Type.
package iface

import (
	"fmt"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/ctlerr"
)

// ID is a stable, non-zero handle to an Interface.
type ID uint16

// Invalid is the zero ID, never assigned to a live interface.
const Invalid ID = 0

// MaxInterfaces bounds the registry's dense table.
const MaxInterfaces = 4096

// Type tags the closed set of interface kinds.
type Type uint8

// Interface type tags.
const (
	TypePort Type = iota + 1
	TypeVLAN
)

func (t Type) String() string {
	switch t {
	case TypePort:
		return "port"
	case TypeVLAN:
		return "vlan"
	default:
		return "unknown"
	}
}

// Flag is a bit in Interface.Flags.
type Flag uint16

// Interface flags (spec §3 Data Model).
const (
	FlagUp Flag = 1 << iota
	FlagPromisc
	FlagAllmulti
)

// State is a bit in Interface.State.
type State uint16

// Interface state bits.
const (
	StateRunning State = 1 << iota
)

// SetMask selects which attributes of iface.set are meaningful,
// per spec §4.1's "mask enumerates which... are meaningful".
type SetMask uint32

// Common attribute bits, shared by every interface type. Type-specific
// bits start at SetMaskTypeBase.
const (
	SetFlags SetMask = 1 << iota
	SetMTU
	SetVRF
	// SetMaskTypeBase is the first bit reserved for type-specific
	// attributes (e.g. ifvlan's "parent/vlan changed" and "mac changed").
	SetMaskTypeBase SetMask = 1 << 8
	// SetAll requests every attribute, used by Init's internal call
	// into Reconfig (spec §4.2).
	SetAll SetMask = ^SetMask(0)
)

// Info is the opaque per-type info block carried by an Interface. Each
// Type's descriptor knows how to interpret the concrete type stored
// here; the registry itself never inspects it.
type Info interface {
	// Type returns the info's interface type, so the registry can
	// validate it against the descriptor it is dispatched to.
	Type() Type
}

// Interface is a control-plane object representing a logical L2/L3
// attachment point: a physical NIC port or a VLAN sub-interface.
type Interface struct {
	ID       ID
	Type     Type
	Name     string
	Flags    Flag
	State    State
	MTU      int
	VRF      uint16
	Info     Info
	Parent   ID
	Children []ID
}

func (i *Interface) hasFlag(f Flag) bool { return i.Flags&f != 0 }

// SetFlag sets or clears f in Flags; used by type descriptors
// reconciling a requested flag against what the driver actually
// accepted (spec §4.3's "read the effective value back and reconcile
// the flag bit").
func (i *Interface) SetFlag(f Flag, on bool) {
	if on {
		i.Flags |= f
	} else {
		i.Flags &^= f
	}
}

// IsUp reports whether FlagUp is set.
func (i *Interface) IsUp() bool { return i.hasFlag(FlagUp) }

// SetState sets or clears s in State.
func (i *Interface) SetState(s State, on bool) {
	if on {
		i.State |= s
	} else {
		i.State &^= s
	}
}

// MACProvider is implemented by interface types that expose a MAC
// address, per spec §4.2's get_mac capability.
type MACProvider interface {
	GetMAC(i *Interface) macaddr.Addr
}

// MulticastMACEditor is implemented by interface types that support
// add_mac/del_mac (multicast receive filters), per spec §4.2.
type MulticastMACEditor interface {
	AddMAC(i *Interface, a macaddr.Addr) error
	DelMAC(i *Interface, a macaddr.Addr) error
}

// TypeDescriptor is the per-type vtable dispatched to by the registry:
// {init, reconfig, fini, to_api} from spec §4.2, plus the optional
// MAC capabilities above.
type TypeDescriptor interface {
	// Init initializes a newly allocated Interface in place. It may
	// call Reconfig internally with mask=SetAll (spec §4.2).
	Init(i *Interface, info Info) error
	// Reconfig applies the attributes selected by mask.
	Reconfig(i *Interface, mask SetMask, flags Flag, mtu int, vrf uint16, info Info) error
	// Fini tears the interface down. It must be safe to call on a
	// partially-initialized interface (spec §4.2).
	Fini(i *Interface) error
	// ToAPI renders the interface as an API-facing descriptor.
	ToAPI(i *Interface) any
}

// Registry is the dense interface table (C1) plus the type descriptor
// table (C2). It is explicit state, not a package global, per spec §9
// "Model as explicit state handles".
type Registry struct {
	descriptors map[Type]TypeDescriptor
	byID        [MaxInterfaces]*Interface
	byTypeName  map[Type]map[string]ID
	nextID      ID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: map[Type]TypeDescriptor{},
		byTypeName:  map[Type]map[string]ID{},
		nextID:      1,
	}
}

// RegisterType installs the type descriptor for t. It must be called
// during process init, before any Add call for that type; there is no
// dynamic unregister (spec §4.8's one-shot registration policy applies
// equally to type descriptors).
func (r *Registry) RegisterType(t Type, d TypeDescriptor) {
	r.descriptors[t] = d
	if r.byTypeName[t] == nil {
		r.byTypeName[t] = map[string]ID{}
	}
}

func (r *Registry) descriptorFor(t Type) (TypeDescriptor, error) {
	d, ok := r.descriptors[t]
	if !ok {
		return nil, ctlerr.New(ctlerr.Validation, "no type descriptor registered for %v", t)
	}
	return d, nil
}

func (r *Registry) allocID() (ID, error) {
	for n := 0; n < MaxInterfaces; n++ {
		id := r.nextID
		r.nextID++
		if int(r.nextID) >= MaxInterfaces { // wrap within the table, skip Invalid
			r.nextID = 1
		}
		if r.byID[id] == nil {
			return id, nil
		}
	}
	return Invalid, ctlerr.New(ctlerr.Resource, "interface table is full")
}

// Add allocates an id and initializes a new interface, per spec
// §4.1's iface_add.
func (r *Registry) Add(t Type, name string, flags Flag, mtu int, vrf uint16, info Info) (ID, error) {
	if name == "" {
		return Invalid, ctlerr.New(ctlerr.Validation, "interface name must not be empty")
	}
	if _, exists := r.byTypeName[t][name]; exists {
		return Invalid, ctlerr.New(ctlerr.Conflict, "interface %s %q already exists", t, name)
	}
	d, e := r.descriptorFor(t)
	if e != nil {
		return Invalid, e
	}

	id, e := r.allocID()
	if e != nil {
		return Invalid, e
	}

	i := &Interface{ID: id, Type: t, Name: name, Flags: flags, MTU: mtu, VRF: vrf}
	if e := d.Init(i, info); e != nil {
		return Invalid, e
	}

	r.byID[id] = i
	r.byTypeName[t][name] = id
	return id, nil
}

// Set dispatches to the type's Reconfig, per spec §4.1's iface_set.
func (r *Registry) Set(id ID, mask SetMask, flags Flag, mtu int, vrf uint16, info Info) error {
	i := r.byID[id]
	if i == nil {
		return ctlerr.NoSuchDevice("interface %d not found", id)
	}
	d, e := r.descriptorFor(i.Type)
	if e != nil {
		return e
	}
	return d.Reconfig(i, mask, flags, mtu, vrf, info)
}

// Del tears the interface down and removes it from the registry and
// from its parent's child list, per spec §4.1's iface_del. Fini
// refuses to run while children exist (BUSY).
func (r *Registry) Del(id ID) error {
	i := r.byID[id]
	if i == nil {
		return ctlerr.NoSuchDevice("interface %d not found", id)
	}
	if len(i.Children) > 0 {
		return ctlerr.New(ctlerr.Busy, "interface %d has %d children", id, len(i.Children))
	}
	d, e := r.descriptorFor(i.Type)
	if e != nil {
		return e
	}
	if e := d.Fini(i); e != nil {
		return e
	}

	if i.Parent != Invalid {
		r.DelSubinterface(i.Parent, id)
	}
	delete(r.byTypeName[i.Type], i.Name)
	r.byID[id] = nil
	return nil
}

// FromID performs O(1) lookup, per spec §4.1's iface_from_id.
func (r *Registry) FromID(id ID) *Interface {
	if id == Invalid || int(id) >= len(r.byID) {
		return nil
	}
	return r.byID[id]
}

// FromName looks up an interface by (type, name), the other half of
// spec §3's "(type, name) also unique" invariant.
func (r *Registry) FromName(t Type, name string) *Interface {
	id, ok := r.byTypeName[t][name]
	if !ok {
		return nil
	}
	return r.byID[id]
}

// Next returns typed interfaces in id order, starting strictly after
// cursor (pass Invalid to start from the beginning), per spec §4.1's
// iface_next.
func (r *Registry) Next(t Type, cursor ID) *Interface {
	for id := cursor + 1; int(id) < len(r.byID); id++ {
		if i := r.byID[id]; i != nil && i.Type == t {
			return i
		}
	}
	return nil
}

// List returns all live interfaces of the given type, in id order.
func (r *Registry) List(t Type) []*Interface {
	var out []*Interface
	for cur := r.Next(t, Invalid); cur != nil; cur = r.Next(t, cur.ID) {
		out = append(out, cur)
	}
	return out
}

// AddSubinterface links child under parent, per spec §4.1.
func (r *Registry) AddSubinterface(parent, child ID) error {
	p := r.byID[parent]
	if p == nil {
		return ctlerr.New(ctlerr.NotFound, "interface %d not found", parent)
	}
	p.Children = append(p.Children, child)
	return nil
}

// DelSubinterface unlinks child from parent, per spec §4.1.
func (r *Registry) DelSubinterface(parent, child ID) {
	p := r.byID[parent]
	if p == nil {
		return
	}
	for idx, c := range p.Children {
		if c == child {
			p.Children = append(p.Children[:idx], p.Children[idx+1:]...)
			return
		}
	}
}

// ToAPI renders i via its type descriptor, per spec §4.2's to_api.
func (r *Registry) ToAPI(i *Interface) (any, error) {
	d, e := r.descriptorFor(i.Type)
	if e != nil {
		return nil, e
	}
	return d.ToAPI(i), nil
}

// GetMAC returns the interface's MAC address if its type implements
// MACProvider, per spec §4.2's get_mac.
func (r *Registry) GetMAC(i *Interface) (macaddr.Addr, error) {
	d, e := r.descriptorFor(i.Type)
	if e != nil {
		return macaddr.Addr{}, e
	}
	mp, ok := d.(MACProvider)
	if !ok {
		return macaddr.Addr{}, ctlerr.New(ctlerr.Validation, "%v interfaces have no MAC address", i.Type)
	}
	return mp.GetMAC(i), nil
}

// AddMAC installs a multicast receive filter if the interface's type
// implements MulticastMACEditor, per spec §4.2's add_mac.
func (r *Registry) AddMAC(i *Interface, a macaddr.Addr) error {
	d, e := r.descriptorFor(i.Type)
	if e != nil {
		return e
	}
	me, ok := d.(MulticastMACEditor)
	if !ok {
		return ctlerr.New(ctlerr.Validation, "%v interfaces do not support add_mac", i.Type)
	}
	return me.AddMAC(i, a)
}

// DelMAC removes a multicast receive filter, per spec §4.2's del_mac.
func (r *Registry) DelMAC(i *Interface, a macaddr.Addr) error {
	d, e := r.descriptorFor(i.Type)
	if e != nil {
		return e
	}
	me, ok := d.(MulticastMACEditor)
	if !ok {
		return ctlerr.New(ctlerr.Validation, "%v interfaces do not support del_mac", i.Type)
	}
	return me.DelMAC(i, a)
}

func validateFlag(set SetMask, bit SetMask) bool { return set&bit != 0 }

// String renders an Interface for logging.
func (i *Interface) String() string {
	return fmt.Sprintf("%s(%d,%q)", i.Type, i.ID, i.Name)
}

// HasSetFlags reports whether mask selects the FLAGS attribute; small
// helper used by every type descriptor's Reconfig.
func HasSetFlags(mask SetMask) bool { return validateFlag(mask, SetFlags) }

// HasSetMTU reports whether mask selects the MTU attribute.
func HasSetMTU(mask SetMask) bool { return validateFlag(mask, SetMTU) }

// HasSetVRF reports whether mask selects the VRF attribute.
func HasSetVRF(mask SetMask) bool { return validateFlag(mask, SetVRF) }
