// Package ifvlan implements the VLAN sub-interface manager (spec
// §4.5): interfaces parented to a port, keyed by (parent_port_id,
// vlan_id), that program a VLAN filter and a multicast MAC filter on
// the parent. Follows the parent-delegation shape common to
// sub-interface managers layered over a port table, generalized to
// the (parent, vlan, mcast MAC) triple of spec §3.
package ifvlan

import (
	"errors"

	"go.uber.org/zap"

	"github.com/routerctl/routerctl/core/logging"
	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/ctlerr"
	"github.com/routerctl/routerctl/drvapi"
	"github.com/routerctl/routerctl/iface"
	"github.com/routerctl/routerctl/ifport"
)

var logger = logging.New("ifvlan")

// MinVLANID and MaxVLANID bound valid VLAN ids (spec §3: "VLAN id
// (1..4094)").
const (
	MinVLANID = 1
	MaxVLANID = 4094
)

// Type-specific Set mask bits.
const (
	// SetParentVLAN requests the parent/vlan_id attributes change.
	SetParentVLAN iface.SetMask = iface.SetMaskTypeBase << iota
	// SetMCastMAC requests the multicast MAC attribute change.
	SetMCastMAC
)

// Info is the Vlan type's info block (spec §3 "Vlan info").
type Info struct {
	Parent   iface.ID
	VLANID   int
	MCastMAC macaddr.Addr
}

// Type implements iface.Info.
func (*Info) Type() iface.Type { return iface.TypeVLAN }

// API is the wire-facing rendering of a VLAN sub-interface.
type API struct {
	Name     string       `json:"name"`
	Parent   iface.ID     `json:"parent"`
	VLANID   int          `json:"vlanId"`
	MCastMAC macaddr.Addr `json:"mcastMac"`
	MTU      int          `json:"mtu"`
	Up       bool         `json:"up"`
}

type key struct {
	parentPortID int
	vlanID       int
}

// Manager is the C5 VLAN sub-interface manager: an
// iface.TypeDescriptor for iface.TypeVLAN, keyed by (parent_port_id,
// vlan_id) per spec §4.5.
type Manager struct {
	reg   *iface.Registry
	ports *ifport.Manager
	byKey map[key]iface.ID
}

var _ iface.TypeDescriptor = (*Manager)(nil)

// NewManager creates a VLAN manager and registers it with reg as the
// TypeVLAN descriptor.
func NewManager(reg *iface.Registry, ports *ifport.Manager) *Manager {
	m := &Manager{reg: reg, ports: ports, byKey: map[key]iface.ID{}}
	reg.RegisterType(iface.TypeVLAN, m)
	return m
}

func validateVLANID(id int) error {
	if id < MinVLANID || id > MaxVLANID {
		return ctlerr.New(ctlerr.Validation, "VLAN id %d out of range [%d,%d]", id, MinVLANID, MaxVLANID)
	}
	return nil
}

// AddVLAN implements the iface.add(vlan, ...) request (spec §6).
func (m *Manager) AddVLAN(name string, parent iface.ID, vlanID int, mcastMAC macaddr.Addr) (iface.ID, error) {
	info := &Info{Parent: parent, VLANID: vlanID, MCastMAC: mcastMAC}
	return m.reg.Add(iface.TypeVLAN, name, 0, 0, 0, info)
}

// resolveParent validates parent resolves to a live Port interface.
func (m *Manager) resolveParent(parent iface.ID) (*iface.Interface, error) {
	p := m.reg.FromID(parent)
	if p == nil || p.Type != iface.TypePort {
		return nil, ctlerr.New(ctlerr.Validation, "parent %d is not a port interface", parent)
	}
	return p, nil
}

// Init implements iface.TypeDescriptor.Init for VLAN sub-interfaces.
// Spec §4.2 permits init to delegate entirely to reconfig with the
// "all attributes" mask.
func (m *Manager) Init(i *iface.Interface, infoArg iface.Info) error {
	info, ok := infoArg.(*Info)
	if !ok {
		return ctlerr.New(ctlerr.Validation, "ifvlan.Init called with non-vlan info")
	}
	i.Info = &Info{}
	return m.Reconfig(i, iface.SetAll, i.Flags, i.MTU, i.VRF, info)
}

// Reconfig implements iface.TypeDescriptor.Reconfig, handling the
// cross-product of {initial, reconfig} x {parent/vlan, mac,
// flags/mtu/vrf} described in spec §4.5.
func (m *Manager) Reconfig(i *iface.Interface, mask iface.SetMask, flags iface.Flag, mtu int, vrf uint16, newInfo iface.Info) error {
	cur := i.Info.(*Info)
	isInitial := cur.Parent == iface.Invalid

	if mask&SetParentVLAN != 0 || isInitial {
		ni, ok := newInfo.(*Info)
		if !ok {
			return ctlerr.New(ctlerr.Validation, "vlan reconfig missing parent/vlan attributes")
		}
		if e := validateVLANID(ni.VLANID); e != nil {
			return e
		}
		parentIface, e := m.resolveParent(ni.Parent)
		if e != nil {
			return e
		}
		parentPortID := ifport.PortIDOf(parentIface)
		newKey := key{parentPortID: parentPortID, vlanID: ni.VLANID}

		if existing, exists := m.byKey[newKey]; exists && existing != i.ID {
			return ctlerr.New(ctlerr.Conflict, "vlan %d on port %d already exists", ni.VLANID, parentPortID)
		}

		if !isInitial {
			oldParent := m.reg.FromID(cur.Parent)
			oldKey := key{parentPortID: ifport.PortIDOf(oldParent), vlanID: cur.VLANID}
			delete(m.byKey, oldKey)
			m.reg.DelSubinterface(cur.Parent, i.ID)
			if e := bestEffortDisableVLANFilter(oldParent, cur.VLANID); e != nil {
				return e
			}
		}

		if e := bestEffortEnableVLANFilter(parentIface, ni.VLANID); e != nil {
			return e
		}

		cur.Parent = ni.Parent
		cur.VLANID = ni.VLANID
		if e := m.reg.AddSubinterface(ni.Parent, i.ID); e != nil {
			return e
		}
		i.Parent = ni.Parent
		m.byKey[newKey] = i.ID
	}

	if mask&SetMCastMAC != 0 || isInitial {
		ni, ok := newInfo.(*Info)
		if !ok {
			return ctlerr.New(ctlerr.Validation, "vlan reconfig missing mcast mac attribute")
		}
		if !ni.MCastMAC.IsZero() && !ni.MCastMAC.IsMulticast() {
			return ctlerr.New(ctlerr.Validation, "vlan multicast MAC %s is not multicast", ni.MCastMAC)
		}
		parentIface := m.reg.FromID(cur.Parent)
		if !isInitial && !cur.MCastMAC.IsZero() {
			m.reg.DelMAC(parentIface, cur.MCastMAC)
		}
		if !ni.MCastMAC.IsZero() {
			if e := m.reg.AddMAC(parentIface, ni.MCastMAC); e != nil {
				return e
			}
		}
		cur.MCastMAC = ni.MCastMAC
	}

	if iface.HasSetFlags(mask) {
		i.Flags = flags
	}
	if iface.HasSetMTU(mask) {
		i.MTU = mtu
	}
	if iface.HasSetVRF(mask) {
		i.VRF = vrf
	}
	return nil
}

// Fini implements iface.TypeDescriptor.Fini for VLAN sub-interfaces,
// per spec §4.5: remove the key, disable the filter, remove the
// multicast MAC, detach from the parent. A genuine (non-best-effort)
// filter-removal error is remembered but does not stop the remaining
// teardown steps.
func (m *Manager) Fini(i *iface.Interface) error {
	cur := i.Info.(*Info)
	if cur.Parent == iface.Invalid {
		return nil
	}
	parentIface := m.reg.FromID(cur.Parent)

	delete(m.byKey, key{parentPortID: ifport.PortIDOf(parentIface), vlanID: cur.VLANID})
	var firstErr error
	if e := bestEffortDisableVLANFilter(parentIface, cur.VLANID); e != nil {
		firstErr = e
	}

	if !cur.MCastMAC.IsZero() && parentIface != nil {
		if e := m.reg.DelMAC(parentIface, cur.MCastMAC); e != nil && firstErr == nil {
			firstErr = e
		}
	}
	m.reg.DelSubinterface(cur.Parent, i.ID)
	return firstErr
}

// ToAPI implements iface.TypeDescriptor.ToAPI for VLAN sub-interfaces.
func (m *Manager) ToAPI(i *iface.Interface) any {
	info := i.Info.(*Info)
	return API{
		Name:     i.Name,
		Parent:   info.Parent,
		VLANID:   info.VLANID,
		MCastMAC: info.MCastMAC,
		MTU:      i.MTU,
		Up:       i.IsUp(),
	}
}

// AddMAC implements iface.MulticastMACEditor for VLAN sub-interfaces:
// it requires a multicast MAC and delegates to the parent's MAC
// operations, per spec §4.5's add_eth_addr.
func (m *Manager) AddMAC(i *iface.Interface, a macaddr.Addr) error {
	if !a.IsMulticast() {
		return ctlerr.New(ctlerr.Validation, "add_eth_addr requires a multicast MAC")
	}
	cur := i.Info.(*Info)
	return m.reg.AddMAC(m.reg.FromID(cur.Parent), a)
}

// DelMAC implements iface.MulticastMACEditor for VLAN sub-interfaces,
// per spec §4.5's del_eth_addr.
func (m *Manager) DelMAC(i *iface.Interface, a macaddr.Addr) error {
	if !a.IsMulticast() {
		return ctlerr.New(ctlerr.Validation, "del_eth_addr requires a multicast MAC")
	}
	cur := i.Info.(*Info)
	return m.reg.DelMAC(m.reg.FromID(cur.Parent), a)
}

// bestEffortEnableVLANFilter installs a VLAN filter on parent,
// tolerating drvapi.ErrNotSupported per spec §4.5 and §9's
// "Best-effort driver errors"; any other error is a genuine driver
// failure and propagates.
func bestEffortEnableVLANFilter(parent *iface.Interface, vlanID int) error {
	dev := deviceOf(parent)
	if dev == nil {
		return nil
	}
	e := dev.AddVLANFilter(vlanID)
	if e == nil {
		return nil
	}
	if errors.Is(e, drvapi.ErrNotSupported) {
		logBestEffort("enable VLAN filter", parent, vlanID, e)
		return nil
	}
	return ctlerr.FromDriver(e, "enable VLAN filter %d on %s", vlanID, parent)
}

// bestEffortDisableVLANFilter removes a VLAN filter on parent,
// tolerating the same best-effort failures.
func bestEffortDisableVLANFilter(parent *iface.Interface, vlanID int) error {
	dev := deviceOf(parent)
	if dev == nil {
		return nil
	}
	e := dev.DelVLANFilter(vlanID)
	if e == nil {
		return nil
	}
	if errors.Is(e, drvapi.ErrNotSupported) {
		logBestEffort("disable VLAN filter", parent, vlanID, e)
		return nil
	}
	return ctlerr.FromDriver(e, "disable VLAN filter %d on %s", vlanID, parent)
}

func logBestEffort(op string, parent *iface.Interface, vlanID int, e error) {
	logger.Info(op+" not supported by driver, ignoring",
		zap.Stringer("parent", parent), zap.Int("vlan", vlanID), zap.Error(e))
}

func deviceOf(parent *iface.Interface) vlanFilterDevice {
	if parent == nil {
		return nil
	}
	info, ok := parent.Info.(*ifport.Info)
	if !ok {
		return nil
	}
	return info.Device
}

// vlanFilterDevice is the minimal slice of drvapi.Device this package
// needs for VLAN filtering.
type vlanFilterDevice interface {
	AddVLANFilter(vlanID int) error
	DelVLANFilter(vlanID int) error
}
