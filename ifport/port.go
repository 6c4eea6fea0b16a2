// Package ifport implements the port manager (spec §4.3): it probes
// NIC devices, sizes queues and buffer pools, drives the
// configuration sequence, and reconciles runtime attribute updates
// and teardown against a drvapi.Device. Follows the shape of a port
// manager that plays the identical role for DPDK ethdevs; here the
// cgo ethdev handle is replaced by the drvapi.Device interface so the
// sequence can run against simdrv in tests.
package ifport

import (
	"go.uber.org/multierr"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/ctlerr"
	"github.com/routerctl/routerctl/drvapi"
	"github.com/routerctl/routerctl/iface"
	"github.com/routerctl/routerctl/numa"
	"github.com/routerctl/routerctl/pktpool"
	"github.com/routerctl/routerctl/worker"
)

// DefaultQueueSize is the fixed fallback used when neither the caller
// nor the driver supplies a queue size, per spec §4.3 "Queue sizing".
const DefaultQueueSize = 512

// DefaultBurstSize is the assumed RX/TX burst size fed into the pool
// capacity formula of spec §4.3 "Pool allocation".
const DefaultBurstSize = 32

// Type-specific Set mask bits, layered on iface.SetMaskTypeBase.
const (
	// SetQueueSizing requests the full configuration sequence to
	// rerun because a sizing attribute (n_rxq, queue sizes) changed,
	// per spec §4.3 "only when !configured or sizing attributes
	// changed". n_txq is not taken from the request; configure
	// recomputes it from the worker count.
	SetQueueSizing iface.SetMask = iface.SetMaskTypeBase << iota
	// SetNTxq requests only a TX-queue count resize, cascaded onto
	// every other live port whenever the worker count changes, per
	// spec §4.3 Teardown's "mask=N_TXQS".
	SetNTxq
	// SetMAC requests a MAC address update.
	SetMAC
)

// Info is the Port type's info block (spec §3 "Port info").
type Info struct {
	PortID  int
	DevArgs string
	Device  drvapi.Device

	MAC macaddr.Addr

	NRxq, NTxq       int
	RxqSize, TxqSize int

	RSSRequested     drvapi.RSSHashFunc
	RxOffloadsWanted drvapi.RxOffload

	Pool       *pktpool.Pool
	Configured bool
}

// Type implements iface.Info.
func (*Info) Type() iface.Type { return iface.TypePort }

// API is the wire-facing rendering of a port, per spec §6's
// "port descriptor".
type API struct {
	Name    string        `json:"name"`
	PortID  int           `json:"portId"`
	DevArgs string        `json:"devArgs"`
	MAC     macaddr.Addr  `json:"mac"`
	MTU     int           `json:"mtu"`
	Up      bool          `json:"up"`
	Running bool          `json:"running"`
	NRxq    int           `json:"nRxq"`
	NTxq    int           `json:"nTxq"`
	RxqSize int           `json:"rxqSize"`
	TxqSize int           `json:"txqSize"`
}

// DeviceFactory probes a new NIC device for devArgs. Injected so this
// package never hardcodes a concrete driver, per spec §1's "NIC driver
// ... we describe only the interface we demand of them".
type DeviceFactory func(devArgs string) (drvapi.Device, error)

// Manager is the C3 port manager: an iface.TypeDescriptor for
// iface.TypePort, plus the port-id back-table and worker set it needs
// to run the configuration sequence.
type Manager struct {
	reg       *iface.Registry
	workers   *worker.Set
	newDevice DeviceFactory

	byPortID  map[int]iface.ID
	nextCPUID int
}

var _ iface.TypeDescriptor = (*Manager)(nil)
var _ iface.MACProvider = (*Manager)(nil)
var _ iface.MulticastMACEditor = (*Manager)(nil)

// NewManager creates a port manager and registers it with reg as the
// TypePort descriptor.
func NewManager(reg *iface.Registry, workers *worker.Set, newDevice DeviceFactory) *Manager {
	m := &Manager{
		reg:       reg,
		workers:   workers,
		newDevice: newDevice,
		byPortID:  map[int]iface.ID{},
	}
	reg.RegisterType(iface.TypePort, m)
	return m
}

func (m *Manager) allocPortID() (int, error) {
	for id := 0; id < drvapi.MaxEthPorts; id++ {
		if _, used := m.byPortID[id]; !used {
			return id, nil
		}
	}
	return -1, ctlerr.New(ctlerr.Resource, "no free NIC port id")
}

func (m *Manager) allocCPUID() int {
	id := m.nextCPUID
	m.nextCPUID++
	return id
}

// AddPort implements the port.add request (spec §6): probe the device
// and register it as a new Port interface named name.
func (m *Manager) AddPort(devArgs, name string) (iface.ID, error) {
	if m.reg.FromName(iface.TypePort, name) != nil {
		return iface.Invalid, ctlerr.New(ctlerr.Conflict, "port %q already exists", name)
	}
	portID, e := m.allocPortID()
	if e != nil {
		return iface.Invalid, e
	}

	info := &Info{
		PortID:           portID,
		DevArgs:          devArgs,
		RSSRequested:     drvapi.RSSIPv4 | drvapi.RSSIPv4TCP | drvapi.RSSIPv4UDP,
		RxOffloadsWanted: drvapi.RxOffloadChecksum,
	}
	// reserve the port id before Init runs, so a concurrent add of a
	// duplicate NIC can never be allocated the same id (spec §3
	// "exactly one interface ever references a given NIC port id").
	m.byPortID[portID] = iface.Invalid

	id, e := m.reg.Add(iface.TypePort, name, 0, 0, 0, info)
	if e != nil {
		delete(m.byPortID, portID)
		return iface.Invalid, e
	}
	m.byPortID[portID] = id
	return id, nil
}

// Init probes the device and runs the initial configuration sequence,
// per spec §4.2's "init is permitted to call reconfig internally with
// a mask meaning all attributes".
func (m *Manager) Init(i *iface.Interface, infoArg iface.Info) error {
	info, ok := infoArg.(*Info)
	if !ok {
		return ctlerr.New(ctlerr.Validation, "ifport.Init called with non-port info")
	}
	device, e := m.newDevice(info.DevArgs)
	if e != nil {
		return ctlerr.FromDriver(e, "probe %s", info.DevArgs)
	}
	info.Device = device
	info.MAC = device.MACAddr()
	i.Info = info
	i.MTU = device.MTU()

	if e := m.configure(i, info); e != nil {
		device.Close()
		return e
	}
	return nil
}

// configure runs spec §4.3's eight-step configuration sequence.
func (m *Manager) configure(i *iface.Interface, info *Info) error {
	device := info.Device
	devInfo := device.Info()

	// Step 1: ensure a worker exists on the port's socket.
	workersBefore := m.workers.Count()
	defWorker := m.workers.EnsureDefault(devInfo.NumaSocket, m.allocCPUID)
	grewWorkers := m.workers.Count() > workersBefore

	// Step 2: recompute n_txq/n_rxq.
	info.NTxq = m.workers.Count()
	if info.NRxq < 1 {
		info.NRxq = 1
	}

	// Step 3: free any prior pool; recompute queue sizes.
	info.Pool = nil
	rxqSize := resolveQueueSize(info.RxqSize, devInfo.DefaultRxQueueSize)
	txqSize := resolveQueueSize(info.TxqSize, devInfo.DefaultTxQueueSize)

	// Step 4: mask RSS and RX offloads by driver capability.
	rss := info.RSSRequested & devInfo.FlowTypeRSSOffloads
	if rss == 0 {
		info.NRxq = 1
	}
	rxOffloads := info.RxOffloadsWanted & devInfo.RxOffloadCapa

	// Step 5: device configure.
	rxQueues := make([]drvapi.RxQueueConfig, info.NRxq)
	for q := range rxQueues {
		rxQueues[q] = drvapi.RxQueueConfig{Capacity: rxqSize, Socket: devInfo.NumaSocket}
	}
	txQueues := make([]drvapi.TxQueueConfig, info.NTxq)
	for q := range txQueues {
		txQueues[q] = drvapi.TxQueueConfig{Capacity: txqSize, Socket: devInfo.NumaSocket}
	}
	if e := device.Configure(drvapi.Config{
		RxQueues:   rxQueues,
		TxQueues:   txQueues,
		RSS:        rss,
		RxOffloads: rxOffloads,
	}); e != nil {
		return ctlerr.FromDriver(e, "configure port %d", info.PortID)
	}

	// Step 6: allocate the pool (queue setup is folded into Configure
	// above, since drvapi.Device takes queue configs directly).
	poolSocket := devInfo.NumaSocket
	if poolSocket.IsAny() {
		poolSocket = defWorker.Socket
	}
	rxqSizes := make([]int, info.NRxq)
	for q := range rxqSizes {
		rxqSizes[q] = rxqSize
	}
	txqSizes := make([]int, info.NTxq)
	for q := range txqSizes {
		txqSizes[q] = txqSize
	}
	capacity := pktpool.ComputeCapacity(rxqSizes, txqSizes, DefaultBurstSize)
	info.Pool = pktpool.New(capacity, poolSocket)
	info.RxqSize, info.TxqSize = rxqSize, txqSize

	// Step 7: worker/queue assignment.
	if e := m.workers.Assign(info.PortID, info.NRxq, devInfo.NumaSocket); e != nil {
		return e
	}

	// Step 8: mark configured.
	info.Configured = true

	// EnsureDefault creating a new worker grows every live worker's
	// TX-map set by one; every other already-configured port needs its
	// own n_txq/TX-assignment recomputed to match, the grow-side
	// counterpart of Fini's shrink cascade.
	if grewWorkers {
		for _, other := range m.reg.List(iface.TypePort) {
			if other.ID == i.ID {
				continue
			}
			if e := m.Reconfig(other, SetNTxq, other.Flags, other.MTU, other.VRF, nil); e != nil {
				return e
			}
		}
	}
	return nil
}

func resolveQueueSize(requested, driverDefault int) int {
	if requested != 0 {
		return requested
	}
	if driverDefault != 0 {
		return driverDefault
	}
	return DefaultQueueSize
}

// Reconfig implements iface.TypeDescriptor.Reconfig for ports, per
// spec §4.3 "Runtime attribute updates" and "Configuration sequence".
func (m *Manager) Reconfig(i *iface.Interface, mask iface.SetMask, flags iface.Flag, mtu int, vrf uint16, newInfo iface.Info) error {
	info := i.Info.(*Info)
	device := info.Device

	if mask&SetQueueSizing != 0 {
		if ni, ok := newInfo.(*Info); ok {
			info.NRxq, info.RxqSize, info.TxqSize = ni.NRxq, ni.RxqSize, ni.TxqSize
		}
		if e := m.configure(i, info); e != nil {
			return e
		}
	} else if mask&SetNTxq != 0 {
		info.NTxq = m.workers.Count()
		if e := m.workers.Assign(info.PortID, info.NRxq, device.Info().NumaSocket); e != nil {
			return e
		}
	}

	if iface.HasSetFlags(mask) {
		wasRunning := i.State&iface.StateRunning != 0
		if wasRunning {
			if e := device.Stop(drvapi.StopReset); e != nil {
				return ctlerr.FromDriver(e, "stop port %d", info.PortID)
			}
		}

		if ok, e := device.SetPromisc(flags&iface.FlagPromisc != 0); e != nil {
			return ctlerr.FromDriver(e, "set promisc on port %d", info.PortID)
		} else {
			i.SetFlag(iface.FlagPromisc, ok)
		}

		if ok, e := device.SetAllmulti(flags&iface.FlagAllmulti != 0); e != nil {
			return ctlerr.FromDriver(e, "set allmulti on port %d", info.PortID)
		} else {
			i.SetFlag(iface.FlagAllmulti, ok)
		}

		i.SetFlag(iface.FlagUp, flags&iface.FlagUp != 0)
		if e := device.Start(); e != nil {
			return ctlerr.FromDriver(e, "start port %d", info.PortID)
		}
		i.SetState(iface.StateRunning, device.IsLinkUp())
	}

	if iface.HasSetMTU(mask) {
		if mtu != 0 {
			if e := device.SetMTU(mtu); e != nil {
				return ctlerr.FromDriver(e, "set MTU on port %d", info.PortID)
			}
			i.MTU = mtu
		} else {
			i.MTU = device.MTU()
		}
	}

	if iface.HasSetVRF(mask) {
		i.VRF = vrf
	}

	if mask&SetMAC != 0 {
		if ni, ok := newInfo.(*Info); ok && !ni.MAC.IsZero() {
			if e := device.SetMACAddr(ni.MAC); e != nil {
				return ctlerr.FromDriver(e, "set MAC on port %d", info.PortID)
			}
			info.MAC = ni.MAC
		} else {
			info.MAC = device.MACAddr()
		}
	}

	return nil
}

// Fini implements iface.TypeDescriptor.Fini for ports, per spec §4.3
// "Teardown".
func (m *Manager) Fini(i *iface.Interface) error {
	info, ok := i.Info.(*Info)
	if !ok || info.Device == nil {
		return nil
	}

	m.workers.Unplug(info.PortID)
	delete(m.byPortID, info.PortID)

	var err error
	if e := info.Device.Stop(drvapi.StopReset); e != nil {
		err = multierr.Append(err, e)
	}
	if e := info.Device.Close(); e != nil {
		err = multierr.Append(err, e)
	}
	info.Pool = nil

	if m.workers.ShrinkIdle() {
		for _, other := range m.reg.List(iface.TypePort) {
			if other.ID == i.ID {
				continue
			}
			if e := m.Reconfig(other, SetNTxq, other.Flags, other.MTU, other.VRF, nil); e != nil {
				err = multierr.Append(err, e)
			}
		}
	}

	if err != nil {
		return ctlerr.FromDriver(err, "tearing down port %d", info.PortID)
	}
	return nil
}

// ToAPI implements iface.TypeDescriptor.ToAPI for ports.
func (m *Manager) ToAPI(i *iface.Interface) any {
	info := i.Info.(*Info)
	return API{
		Name:    i.Name,
		PortID:  info.PortID,
		DevArgs: info.DevArgs,
		MAC:     info.MAC,
		MTU:     i.MTU,
		Up:      i.IsUp(),
		Running: i.State&iface.StateRunning != 0,
		NRxq:    info.NRxq,
		NTxq:    info.NTxq,
		RxqSize: info.RxqSize,
		TxqSize: info.TxqSize,
	}
}

// GetMAC implements iface.MACProvider for ports.
func (m *Manager) GetMAC(i *iface.Interface) macaddr.Addr {
	return i.Info.(*Info).MAC
}

// AddMAC implements iface.MulticastMACEditor for ports: it installs a
// multicast receive filter on the underlying device, used by ifvlan's
// add_eth_addr delegation (spec §4.5).
func (m *Manager) AddMAC(i *iface.Interface, a macaddr.Addr) error {
	info := i.Info.(*Info)
	if e := info.Device.AddMulticastMAC(a); e != nil {
		return ctlerr.FromDriver(e, "add multicast MAC on port %d", info.PortID)
	}
	return nil
}

// DelMAC implements iface.MulticastMACEditor for ports.
func (m *Manager) DelMAC(i *iface.Interface, a macaddr.Addr) error {
	info := i.Info.(*Info)
	if e := info.Device.DelMulticastMAC(a); e != nil {
		return ctlerr.FromDriver(e, "delete multicast MAC on port %d", info.PortID)
	}
	return nil
}

// GetByPortID resolves the interface owning NIC port id, used by
// ifvlan and the API layer to translate between the NIC-port-id space
// and the interface-id space.
func (m *Manager) GetByPortID(portID int) (*iface.Interface, bool) {
	id, ok := m.byPortID[portID]
	if !ok {
		return nil, false
	}
	return m.reg.FromID(id), true
}

// List returns every port interface, in id order.
func (m *Manager) List() []*iface.Interface {
	return m.reg.List(iface.TypePort)
}

// NumaSocketOf returns the NUMA socket of the port backing i, for
// callers (ifvlan) that need it without reaching into Info directly.
func NumaSocketOf(i *iface.Interface) numa.Socket {
	info, ok := i.Info.(*Info)
	if !ok || info.Device == nil {
		return numa.Socket{}
	}
	return info.Device.Info().NumaSocket
}

// PortIDOf returns the NIC port id backing i, or -1 if i is not a port.
func PortIDOf(i *iface.Interface) int {
	info, ok := i.Info.(*Info)
	if !ok {
		return -1
	}
	return info.PortID
}
