package macaddr

import (
	"encoding/json"
	"errors"
	"net"
)

// Addr is a fixed-size MAC-48 address, used wherever a value type
// (rather than net.HardwareAddr's slice) is preferable: table keys,
// struct fields compared by value, zero-value checks.
type Addr [6]byte

// Make converts a net.HardwareAddr to Addr.
func Make(hw net.HardwareAddr) (a Addr, e error) {
	if len(hw) != 6 {
		return a, errors.New("not a MAC-48 address")
	}
	copy(a[:], hw)
	return a, nil
}

// Parse parses Addr from its string form.
func Parse(input string) (a Addr, e error) {
	hw, e := net.ParseMAC(input)
	if e != nil {
		return a, e
	}
	return Make(hw)
}

// IsZero reports whether a is the all-zero address.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

// IsMulticast reports whether a is a multicast MAC-48 address.
func (a Addr) IsMulticast() bool {
	return !a.IsZero() && a[0]&0x01 != 0
}

// IsUnicast reports whether a is a non-zero unicast MAC-48 address.
func (a Addr) IsUnicast() bool {
	return !a.IsZero() && a[0]&0x01 == 0
}

// HardwareAddr converts a to net.HardwareAddr.
func (a Addr) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(a[:])
}

func (a Addr) String() string {
	return a.HardwareAddr().String()
}

// MarshalJSON implements json.Marshaler.
func (a Addr) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Addr) UnmarshalJSON(data []byte) (e error) {
	var s string
	if e := json.Unmarshal(data, &s); e != nil {
		return e
	}
	*a, e = Parse(s)
	return e
}
