package ctlapi

import (
	"context"
	"encoding/json"
	"time"

	"inet.af/netaddr"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/ctlerr"
	"github.com/routerctl/routerctl/iface"
	"github.com/routerctl/routerctl/ifport"
	"github.com/routerctl/routerctl/ifvlan"
	"github.com/routerctl/routerctl/ip4nh"
	"github.com/routerctl/routerctl/ip4route"
)

// Service holds every component the dispatch handlers call into. It
// is the single control thread's view of all process-wide state (spec
// §9's "model as explicit state handles").
type Service struct {
	Reg    *iface.Registry
	Ports  *ifport.Manager
	Vlans  *ifvlan.Manager
	NH     *ip4nh.Table
	Routes *ip4route.Table
}

// Register installs every handler described in spec §6's request
// surface onto d. Called once at process init.
func (svc *Service) Register(d *Dispatcher) {
	d.Register("port.add", svc.portAdd)
	d.Register("port.del", svc.portDel)
	d.Register("port.get", svc.portGet)
	d.Register("port.list", svc.portList)

	d.Register("iface.add", svc.ifaceAdd)
	d.Register("iface.set", svc.ifaceSet)
	d.Register("iface.del", svc.ifaceDel)

	d.Register("ip4.nh.add", svc.nhAdd)
	d.Register("ip4.nh.del", svc.nhDel)
	d.Register("ip4.nh.list", svc.nhList)

	d.Register("ip4.route.add", svc.routeAdd)
	d.Register("ip4.route.del", svc.routeDel)
	d.Register("ip4.route.get", svc.routeGet)
}

// nowFunc is overridden in tests needing a fixed clock.
var nowFunc = time.Now

func decode[T any](req json.RawMessage) (T, error) {
	var v T
	if len(req) == 0 {
		return v, nil
	}
	if e := json.Unmarshal(req, &v); e != nil {
		return v, ctlerr.New(ctlerr.Validation, "malformed request: %v", e)
	}
	return v, nil
}

// --- port.* -----------------------------------------------------------

type portAddReq struct {
	DevArgs string `json:"devargs"`
	Name    string `json:"name"`
}

func (svc *Service) portAdd(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[portAddReq](req)
	if e != nil {
		return nil, e
	}
	id, e := svc.Ports.AddPort(r.DevArgs, r.Name)
	if e != nil {
		return nil, e
	}
	i := svc.Reg.FromID(id)
	return svc.Reg.ToAPI(i)
}

type nameReq struct {
	Name string `json:"name"`
}

func (svc *Service) findPort(name string) (*iface.Interface, error) {
	i := svc.Reg.FromName(iface.TypePort, name)
	if i == nil {
		return nil, ctlerr.NoSuchDevice("port %q not found", name)
	}
	return i, nil
}

func (svc *Service) portDel(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[nameReq](req)
	if e != nil {
		return nil, e
	}
	i, e := svc.findPort(r.Name)
	if e != nil {
		return nil, e
	}
	return nil, svc.Reg.Del(i.ID)
}

func (svc *Service) portGet(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[nameReq](req)
	if e != nil {
		return nil, e
	}
	i, e := svc.findPort(r.Name)
	if e != nil {
		return nil, e
	}
	return svc.Reg.ToAPI(i)
}

func (svc *Service) portList(_ context.Context, _ json.RawMessage) (any, error) {
	var out []any
	for _, i := range svc.Ports.List() {
		api, e := svc.Reg.ToAPI(i)
		if e != nil {
			return nil, e
		}
		out = append(out, api)
	}
	return out, nil
}

// --- iface.* ----------------------------------------------------------

type ifaceAddReq struct {
	Type     string       `json:"type"`
	Name     string       `json:"name"`
	Flags    iface.Flag   `json:"flags"`
	MTU      int          `json:"mtu"`
	VRF      uint16       `json:"vrf"`
	Parent   iface.ID     `json:"parent"`
	VLANID   int          `json:"vlanId"`
	MCastMAC macaddr.Addr `json:"mcastMac"`
}

func (svc *Service) ifaceAdd(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[ifaceAddReq](req)
	if e != nil {
		return nil, e
	}
	switch r.Type {
	case "vlan":
		id, e := svc.Vlans.AddVLAN(r.Name, r.Parent, r.VLANID, r.MCastMAC)
		if e != nil {
			return nil, e
		}
		if e := svc.Reg.Set(id, iface.SetFlags|iface.SetMTU|iface.SetVRF, r.Flags, r.MTU, r.VRF, nil); e != nil {
			return nil, e
		}
		return svc.Reg.ToAPI(svc.Reg.FromID(id))
	case "port":
		return nil, ctlerr.New(ctlerr.Validation, "use port.add to create port interfaces")
	default:
		return nil, ctlerr.New(ctlerr.Validation, "unknown interface type %q", r.Type)
	}
}

type idReq struct {
	ID iface.ID `json:"id"`
}

type ifaceSetReq struct {
	ID       iface.ID      `json:"id"`
	Mask     iface.SetMask `json:"mask"`
	Flags    iface.Flag    `json:"flags"`
	MTU      int           `json:"mtu"`
	VRF      uint16        `json:"vrf"`
	Parent   iface.ID      `json:"parent"`
	VLANID   int           `json:"vlanId"`
	MCastMAC macaddr.Addr  `json:"mcastMac"`
	MAC      macaddr.Addr  `json:"mac"`
	NRxq     int           `json:"nRxq"`
	RxqSize  int           `json:"rxqSize"`
	TxqSize  int           `json:"txqSize"`
}

func (svc *Service) ifaceSet(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[ifaceSetReq](req)
	if e != nil {
		return nil, e
	}
	i := svc.Reg.FromID(r.ID)
	if i == nil {
		return nil, ctlerr.NoSuchDevice("interface %d not found", r.ID)
	}

	var info iface.Info
	switch i.Type {
	case iface.TypeVLAN:
		info = &ifvlan.Info{Parent: r.Parent, VLANID: r.VLANID, MCastMAC: r.MCastMAC}
	case iface.TypePort:
		info = &ifport.Info{MAC: r.MAC, NRxq: r.NRxq, RxqSize: r.RxqSize, TxqSize: r.TxqSize}
	}
	return nil, svc.Reg.Set(r.ID, r.Mask, r.Flags, r.MTU, r.VRF, info)
}

func (svc *Service) ifaceDel(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[idReq](req)
	if e != nil {
		return nil, e
	}
	return nil, svc.Reg.Del(r.ID)
}

// --- ip4.nh.* -----------------------------------------------------------

type nhAddReq struct {
	Host    netaddr.IP   `json:"host"`
	IfaceID iface.ID     `json:"ifaceId"`
	MAC     macaddr.Addr `json:"mac"`
	ExistOK bool         `json:"existOk"`
}

func (svc *Service) nhAdd(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[nhAddReq](req)
	if e != nil {
		return nil, e
	}
	if svc.Reg.FromID(r.IfaceID) == nil {
		return nil, ctlerr.New(ctlerr.Validation, "interface %d does not resolve", r.IfaceID)
	}
	_, e = svc.NH.AddNextHop(svc.Routes, r.Host, r.IfaceID, r.MAC, r.ExistOK)
	return nil, e
}

type nhDelReq struct {
	Host      netaddr.IP `json:"host"`
	MissingOK bool       `json:"missingOk"`
}

func (svc *Service) nhDel(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[nhDelReq](req)
	if e != nil {
		return nil, e
	}
	return nil, svc.NH.DelNextHop(svc.Routes, r.Host, r.MissingOK)
}

// NextHopAPI renders a next-hop slot for the wire, carrying the
// explicit validity flag spec §9's third open question calls for.
type NextHopAPI struct {
	Host     netaddr.IP   `json:"host"`
	MAC      macaddr.Addr `json:"mac"`
	IfaceID  iface.ID     `json:"ifaceId"`
	Flags    ip4nh.Flag   `json:"flags"`
	RefCount uint32       `json:"refCount"`
	AgeSec   float64      `json:"ageSec"`
	AgeValid bool         `json:"ageValid"`
}

func (svc *Service) nhList(_ context.Context, _ json.RawMessage) (any, error) {
	out := make([]NextHopAPI, 0)
	for _, idx := range svc.NH.List() {
		s, ok := svc.NH.GetRef(idx)
		if !ok {
			continue
		}
		age, valid := s.Age(nowFunc())
		out = append(out, NextHopAPI{
			Host:     s.IP,
			MAC:      s.MAC,
			IfaceID:  s.IfaceID,
			Flags:    s.Flags,
			RefCount: s.RefCount,
			AgeSec:   age.Seconds(),
			AgeValid: valid,
		})
	}
	return out, nil
}

// --- ip4.route.* --------------------------------------------------------

type routeAddReq struct {
	Prefix  netaddr.IPPrefix `json:"prefix"`
	GW      netaddr.IP       `json:"gw"`
	ExistOK bool             `json:"existOk"`
}

func (svc *Service) routeAdd(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[routeAddReq](req)
	if e != nil {
		return nil, e
	}
	return nil, svc.Routes.AddRoute(r.Prefix, r.GW, r.ExistOK)
}

type routeDelReq struct {
	Prefix    netaddr.IPPrefix `json:"prefix"`
	MissingOK bool             `json:"missingOk"`
}

func (svc *Service) routeDel(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[routeDelReq](req)
	if e != nil {
		return nil, e
	}
	return nil, svc.Routes.DelRoute(r.Prefix, r.MissingOK)
}

type routeGetReq struct {
	Addr netaddr.IP `json:"addr"`
}

func (svc *Service) routeGet(_ context.Context, req json.RawMessage) (any, error) {
	r, e := decode[routeGetReq](req)
	if e != nil {
		return nil, e
	}
	s, e := svc.Routes.GetRoute(r.Addr)
	if e != nil {
		return nil, e
	}
	age, valid := s.Age(nowFunc())
	return NextHopAPI{
		Host:     s.IP,
		MAC:      s.MAC,
		IfaceID:  s.IfaceID,
		Flags:    s.Flags,
		RefCount: s.RefCount,
		AgeSec:   age.Seconds(),
		AgeValid: valid,
	}, nil
}
