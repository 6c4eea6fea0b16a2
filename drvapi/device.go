// Package drvapi declares the interface this module demands of a
// poll-mode NIC driver runtime. The driver itself is an external
// collaborator; this package owns only the Go-shaped contract and the
// errno-equivalent translation of its failures.
package drvapi

import (
	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/numa"
)

// MaxEthPorts bounds the number of NIC ports the registry tracks.
const MaxEthPorts = 256

// RSSHashFunc identifies one RSS hash function flag.
type RSSHashFunc uint64

// RSS hash function flags, a small subset of the ones a real NIC
// driver advertises.
const (
	RSSIPv4 RSSHashFunc = 1 << iota
	RSSIPv4TCP
	RSSIPv4UDP
	RSSIPv6
)

// RxOffload identifies one RX offload capability flag.
type RxOffload uint64

// A small subset of RX offloads a real NIC driver might support.
const (
	RxOffloadChecksum RxOffload = 1 << iota
	RxOffloadVLANStrip
	RxOffloadScatter
)

// DevInfo describes static device capabilities reported by the driver.
type DevInfo struct {
	DriverName          string
	NumaSocket          numa.Socket
	MaxRxQueues         int
	MaxTxQueues         int
	DefaultRxQueueSize  int
	DefaultTxQueueSize  int
	FlowTypeRSSOffloads RSSHashFunc
	RxOffloadCapa       RxOffload
}

// RxQueueConfig describes one RX queue to set up during Configure.
type RxQueueConfig struct {
	Capacity int
	Socket   numa.Socket
}

// TxQueueConfig describes one TX queue to set up during Configure.
type TxQueueConfig struct {
	Capacity int
	Socket   numa.Socket
}

// Config is the device-wide configuration applied by Configure.
type Config struct {
	RxQueues   []RxQueueConfig
	TxQueues   []TxQueueConfig
	RSS        RSSHashFunc // requested hash functions, masked by DevInfo.FlowTypeRSSOffloads
	RxOffloads RxOffload   // requested RX offloads, masked by DevInfo.RxOffloadCapa
}

// StopMode selects how Stop behaves.
type StopMode int

// Stop behaviors.
const (
	// StopDetach detaches the device; it cannot be restarted.
	StopDetach StopMode = iota
	// StopReset stops the device so it may be reconfigured and restarted.
	StopReset
)

// Device is the control-plane surface a NIC driver must expose.
//
// Implementations are expected to be safe to call only from the
// control goroutine; there is no internal locking.
type Device interface {
	// ID returns the NIC port id (0..MaxEthPorts).
	ID() int
	// Name returns the device name as reported by the driver.
	Name() string
	// Info returns static device capabilities.
	Info() DevInfo
	// Configure applies queue counts/sizes and offload/RSS settings and
	// issues the device-level "configure" call. It does not start the
	// device.
	Configure(cfg Config) error
	// Start brings the device up after Configure.
	Start() error
	// Stop halts the device. mode selects whether it may be restarted.
	Stop(mode StopMode) error
	// Close releases driver-side resources. The device must be stopped
	// first.
	Close() error

	// SetPromisc requests promiscuous mode; ok reports the
	// driver-effective value after the call (drivers may refuse).
	SetPromisc(enable bool) (ok bool, err error)
	// SetAllmulti requests all-multicast reception; ok reports the
	// driver-effective value after the call.
	SetAllmulti(enable bool) (ok bool, err error)
	// IsPromisc reads back the effective promiscuous setting.
	IsPromisc() bool
	// IsAllmulti reads back the effective all-multicast setting.
	IsAllmulti() bool
	// IsLinkUp reads the current link status.
	IsLinkUp() bool

	// MTU reads the device's current MTU.
	MTU() int
	// SetMTU programs a new MTU.
	SetMTU(mtu int) error

	// MACAddr reads the device's current default MAC address.
	MACAddr() macaddr.Addr
	// SetMACAddr programs a new default MAC address.
	SetMACAddr(a macaddr.Addr) error

	// AddVLANFilter enables reception of the given VLAN id. Drivers
	// that do not support VLAN filtering return ErrNotSupported.
	AddVLANFilter(vlanID int) error
	// DelVLANFilter disables reception of the given VLAN id. Drivers
	// that do not support VLAN filtering return ErrNotSupported.
	DelVLANFilter(vlanID int) error

	// AddMulticastMAC programs an additional receive MAC filter.
	// Drivers that do not support MAC filtering return ErrNotSupported.
	AddMulticastMAC(a macaddr.Addr) error
	// DelMulticastMAC removes a receive MAC filter.
	DelMulticastMAC(a macaddr.Addr) error
}

// ErrNotSupported is returned by Device methods that a particular
// driver implementation does not implement; callers should treat it as
// best-effort per spec's filtering policy.
var ErrNotSupported = errNotSupported{}

type errNotSupported struct{}

func (errNotSupported) Error() string { return "operation not supported by driver" }
