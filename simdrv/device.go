// Package simdrv is a software-simulated NIC driver implementing
// drvapi.Device. It exists so the control plane can be exercised and
// tested without a real poll-mode driver runtime, the way a virtual
// device (AF_PACKET, memif, null) stands in for a hardware NIC.
package simdrv

import (
	"fmt"
	"sync"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/drvapi"
	"github.com/routerctl/routerctl/numa"
)

// Config describes how to create a simulated device.
type Config struct {
	// DevArgs is an opaque device argument string, e.g. "net_null0".
	// It is only used for Name(); simdrv does not parse it.
	DevArgs string
	// NumaSocket is the socket the device pretends to be attached to.
	NumaSocket numa.Socket
	// MaxRxQueues and MaxTxQueues cap queue counts; zero means no cap.
	MaxRxQueues int
	MaxTxQueues int
}

var (
	mu        sync.Mutex
	nextID    int
	usedNames = map[string]bool{}
)

// Device is a software-simulated NIC port.
type Device struct {
	id       int
	name     string
	cfg      Config
	mac      macaddr.Addr
	mtu      int
	promisc  bool
	allmulti bool
	linkUp   bool
	started  bool
	closed   bool

	rxQueues int
	txQueues int

	vlanFilters map[int]bool
	mcastMACs   map[macaddr.Addr]bool
}

var _ drvapi.Device = (*Device)(nil)

// New creates and "probes" a simulated device, analogous to the
// driver's probe step in a real implementation.
func New(cfg Config) (*Device, error) {
	mu.Lock()
	defer mu.Unlock()

	if nextID >= drvapi.MaxEthPorts {
		return nil, fmt.Errorf("no free NIC port id (max %d)", drvapi.MaxEthPorts)
	}
	name := cfg.DevArgs
	if name == "" {
		name = fmt.Sprintf("simdev%d", nextID)
	}
	if usedNames[name] {
		return nil, fmt.Errorf("device %q already exists", name)
	}

	d := &Device{
		id:          nextID,
		name:        name,
		cfg:         cfg,
		mtu:         1500,
		linkUp:      true,
		vlanFilters: map[int]bool{},
		mcastMACs:   map[macaddr.Addr]bool{},
	}
	d.mac[0] = 0x02
	d.mac[5] = byte(d.id + 1)

	nextID++
	usedNames[name] = true
	return d, nil
}

func (d *Device) ID() int     { return d.id }
func (d *Device) Name() string { return d.name }

func (d *Device) Info() drvapi.DevInfo {
	return drvapi.DevInfo{
		DriverName:          "net_sim",
		NumaSocket:          d.cfg.NumaSocket,
		MaxRxQueues:         d.cfg.MaxRxQueues,
		MaxTxQueues:         d.cfg.MaxTxQueues,
		DefaultRxQueueSize:  1024,
		DefaultTxQueueSize:  1024,
		FlowTypeRSSOffloads: drvapi.RSSIPv4 | drvapi.RSSIPv4TCP | drvapi.RSSIPv4UDP,
		RxOffloadCapa:       drvapi.RxOffloadChecksum | drvapi.RxOffloadVLANStrip,
	}
}

func (d *Device) Configure(cfg drvapi.Config) error {
	if d.closed {
		return fmt.Errorf("device %s is closed", d.name)
	}
	info := d.Info()
	if info.MaxRxQueues > 0 && len(cfg.RxQueues) > info.MaxRxQueues {
		return fmt.Errorf("cannot configure more than %d RX queues", info.MaxRxQueues)
	}
	if info.MaxTxQueues > 0 && len(cfg.TxQueues) > info.MaxTxQueues {
		return fmt.Errorf("cannot configure more than %d TX queues", info.MaxTxQueues)
	}
	d.rxQueues = len(cfg.RxQueues)
	d.txQueues = len(cfg.TxQueues)
	return nil
}

func (d *Device) Start() error {
	if d.closed {
		return fmt.Errorf("device %s is closed", d.name)
	}
	d.started = true
	return nil
}

func (d *Device) Stop(mode drvapi.StopMode) error {
	d.started = false
	if mode == drvapi.StopDetach {
		d.rxQueues, d.txQueues = 0, 0
	}
	return nil
}

func (d *Device) Close() error {
	mu.Lock()
	defer mu.Unlock()
	if d.started {
		return fmt.Errorf("device %s must be stopped before close", d.name)
	}
	d.closed = true
	delete(usedNames, d.name)
	return nil
}

func (d *Device) SetPromisc(enable bool) (bool, error) {
	d.promisc = enable
	return d.promisc, nil
}

func (d *Device) SetAllmulti(enable bool) (bool, error) {
	d.allmulti = enable
	return d.allmulti, nil
}

func (d *Device) IsPromisc() bool  { return d.promisc }
func (d *Device) IsAllmulti() bool { return d.allmulti }
func (d *Device) IsLinkUp() bool   { return d.linkUp }

// SetLinkUp lets tests simulate link flaps; not part of drvapi.Device.
func (d *Device) SetLinkUp(up bool) { d.linkUp = up }

func (d *Device) MTU() int { return d.mtu }

func (d *Device) SetMTU(mtu int) error {
	if mtu <= 0 {
		return fmt.Errorf("invalid MTU %d", mtu)
	}
	d.mtu = mtu
	return nil
}

func (d *Device) MACAddr() macaddr.Addr { return d.mac }

func (d *Device) SetMACAddr(a macaddr.Addr) error {
	d.mac = a
	return nil
}

func (d *Device) AddVLANFilter(vlanID int) error {
	d.vlanFilters[vlanID] = true
	return nil
}

func (d *Device) DelVLANFilter(vlanID int) error {
	delete(d.vlanFilters, vlanID)
	return nil
}

func (d *Device) AddMulticastMAC(a macaddr.Addr) error {
	d.mcastMACs[a] = true
	return nil
}

func (d *Device) DelMulticastMAC(a macaddr.Addr) error {
	delete(d.mcastMACs, a)
	return nil
}

// HasVLANFilter reports whether a VLAN filter is installed; for tests.
func (d *Device) HasVLANFilter(vlanID int) bool { return d.vlanFilters[vlanID] }

// HasMulticastMAC reports whether a MAC filter is installed; for tests.
func (d *Device) HasMulticastMAC(a macaddr.Addr) bool { return d.mcastMACs[a] }
