package ip4route_test

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
	a, _ := macaddr.Parse("02:00:00:00:00:02")
	return a
}

func newTestTables() (*ip4nh.Table, *ip4route.Table) {
	nh := ip4nh.NewTable()
	return nh, ip4route.NewTable(nh)
}

func TestAddRouteRequiresExistingGateway(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	_, routes := newTestTables()

	dest := netaddr.MustParseIPPrefix("10.0.0.0/24")
	gw := netaddr.MustParseIP("192.0.2.1")

	e := routes.AddRoute(dest, gw, false)
	assert.Error(e)
	assert.True(ctlerr.Is(e, ctlerr.NotFound))
}

func TestLookupRouteIsLongestPrefixMatch(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh, routes := newTestTables()

	gw := netaddr.MustParseIP("192.0.2.1")
	idx, e := nh.AddNextHop(routes, gw, iface.ID(1), someMAC(), false)
	assert.NoError(e)
	gwNarrow := netaddr.MustParseIP("192.0.2.9")
	idxNarrow, e := nh.AddNextHop(routes, gwNarrow, iface.ID(1), someMAC(), false)
	assert.NoError(e)

	wide := netaddr.MustParseIPPrefix("10.0.0.0/8")
	narrow := netaddr.MustParseIPPrefix("10.0.1.0/24")
	assert.NoError(routes.AddRoute(wide, gw, false))
	assert.NoError(routes.AddRoute(narrow, gwNarrow, false))

	assert.Equal(idxNarrow, routes.LookupRoute(netaddr.MustParseIP("10.0.1.5")))
	assert.Equal(idx, routes.LookupRoute(netaddr.MustParseIP("10.0.2.5")))
	assert.Equal(ip4nh.NotFound, routes.LookupRoute(netaddr.MustParseIP("11.0.0.1")))
}

func TestAddRouteDuplicateWithoutExistOKConflicts(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh, routes := newTestTables()

	gw := netaddr.MustParseIP("192.0.2.2")
	_, e := nh.AddNextHop(routes, gw, iface.ID(1), someMAC(), false)
	assert.NoError(e)

	dest := netaddr.MustParseIPPrefix("172.16.0.0/16")
	assert.NoError(routes.AddRoute(dest, gw, false))

	e = routes.AddRoute(dest, gw, false)
	assert.Error(e)
	assert.True(ctlerr.Is(e, ctlerr.Conflict))

	assert.NoError(routes.AddRoute(dest, gw, true))
}

func TestDelRouteMissingOK(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	_, routes := newTestTables()

	dest := netaddr.MustParseIPPrefix("172.17.0.0/16")
	assert.Error(routes.DelRoute(dest, false))
	assert.NoError(routes.DelRoute(dest, true))
}

func TestGetRouteResolvesToNextHopSlot(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh, routes := newTestTables()

	gw := netaddr.MustParseIP("192.0.2.3")
	mac := someMAC()
	_, e := nh.AddNextHop(routes, gw, iface.ID(7), mac, false)
	assert.NoError(e)

	dest := netaddr.MustParseIPPrefix("203.0.113.0/24")
	assert.NoError(routes.AddRoute(dest, gw, false))

	slot, e := routes.GetRoute(netaddr.MustParseIP("203.0.113.9"))
	assert.NoError(e)
	assert.Equal(mac, slot.MAC)
	assert.Equal(iface.ID(7), slot.IfaceID)
}

func TestGetRouteNoMatchIsNotFound(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	_, routes := newTestTables()

	_, e := routes.GetRoute(netaddr.MustParseIP("198.51.100.1"))
	assert.Error(e)
	assert.True(ctlerr.Is(e, ctlerr.NotFound))
}

func TestInsertRouteReplacingIndexDecrefsPrevious(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	nh, routes := newTestTables()

	gwA := netaddr.MustParseIP("192.0.2.4")
	gwB := netaddr.MustParseIP("192.0.2.5")
	idxA, e := nh.AddNextHop(routes, gwA, iface.ID(1), someMAC(), false)
	assert.NoError(e)
	idxB, e := nh.AddNextHop(routes, gwB, iface.ID(1), someMAC(), false)
	assert.NoError(e)

	dest := netaddr.MustParseIPPrefix("192.168.0.0/16")
	assert.NoError(routes.InsertRoute(dest, idxA))
	assert.NoError(routes.InsertRoute(dest, idxB))

	slotA, ok := nh.GetRef(idxA)
	assert.True(ok)
	assert.Equal(uint32(1), slotA.RefCount, "only the implicit /32 route still references gwA")

	slotB, ok := nh.GetRef(idxB)
	assert.True(ok)
	assert.Equal(uint32(2), slotB.RefCount)
}
