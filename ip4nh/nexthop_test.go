package ip4nh_test

import (
	"testing"

	"inet.af/netaddr"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/core/testenv"
	"github.com/routerctl/routerctl/ctlerr"
	"github.com/routerctl/routerctl/iface"
	"github.com/routerctl/routerctl/ip4nh"
	"github.com/routerctl/routerctl/ip4route"
)

func someMAC() macaddr.Addr {
	a, _ := macaddr.Parse("02:00:00:00:00:01")
	return a
}

func TestAddNextHopInstallsImplicitRoute(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh := ip4nh.NewTable()
	routes := ip4route.NewTable(nh)
	gw := netaddr.MustParseIP("203.0.113.1")

	idx, e := nh.AddNextHop(routes, gw, iface.ID(1), someMAC(), false)
	assert.NoError(e)
	assert.NotEqual(ip4nh.NotFound, idx)

	slot, ok := nh.GetRef(idx)
	assert.True(ok)
	assert.Equal(uint32(1), slot.RefCount)
	assert.True(slot.Reachable())

	resolved := routes.LookupRoute(gw)
	assert.Equal(idx, resolved)
}

func TestAddNextHopDuplicateWithoutExistOKConflicts(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh := ip4nh.NewTable()
	routes := ip4route.NewTable(nh)
	gw := netaddr.MustParseIP("203.0.113.2")

	_, e := nh.AddNextHop(routes, gw, iface.ID(1), someMAC(), false)
	assert.NoError(e)

	_, e = nh.AddNextHop(routes, gw, iface.ID(1), someMAC(), false)
	assert.Error(e)
	assert.True(ctlerr.Is(e, ctlerr.Conflict))
}

func TestAddNextHopExistOKIsIdempotent(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh := ip4nh.NewTable()
	routes := ip4route.NewTable(nh)
	gw := netaddr.MustParseIP("203.0.113.3")
	mac := someMAC()

	first, e := nh.AddNextHop(routes, gw, iface.ID(1), mac, true)
	assert.NoError(e)

	second, e := nh.AddNextHop(routes, gw, iface.ID(1), mac, true)
	assert.NoError(e)
	assert.Equal(first, second)
}

func TestDelNextHopBusyWhileRouteReferencesIt(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh := ip4nh.NewTable()
	routes := ip4route.NewTable(nh)
	gw := netaddr.MustParseIP("203.0.113.4")

	_, e := nh.AddNextHop(routes, gw, iface.ID(1), someMAC(), false)
	assert.NoError(e)

	dest := netaddr.MustParseIPPrefix("198.51.100.0/24")
	assert.NoError(routes.AddRoute(dest, gw, false))

	e = nh.DelNextHop(routes, gw, false)
	assert.Error(e)
	assert.True(ctlerr.Is(e, ctlerr.Busy))

	assert.NoError(routes.DelRoute(dest, false))
	assert.NoError(nh.DelNextHop(routes, gw, false))
	assert.Equal(ip4nh.NotFound, nh.Lookup(gw))
}

func TestDelNextHopMissingOK(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh := ip4nh.NewTable()
	routes := ip4route.NewTable(nh)
	gw := netaddr.MustParseIP("203.0.113.5")

	assert.Error(nh.DelNextHop(routes, gw, false))
	assert.NoError(nh.DelNextHop(routes, gw, true))
}

func TestListReturnsOnlyOccupiedSlots(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh := ip4nh.NewTable()
	routes := ip4route.NewTable(nh)
	gwA := netaddr.MustParseIP("203.0.113.6")
	gwB := netaddr.MustParseIP("203.0.113.7")

	_, e := nh.AddNextHop(routes, gwA, iface.ID(1), someMAC(), false)
	assert.NoError(e)
	_, e = nh.AddNextHop(routes, gwB, iface.ID(1), someMAC(), false)
	assert.NoError(e)

	assert.NoError(nh.DelNextHop(routes, gwA, false))

	assert.Len(nh.List(), 1)
}
