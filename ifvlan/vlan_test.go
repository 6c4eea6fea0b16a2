package ifvlan_test

import (
	"testing"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/core/testenv"
	"github.com/routerctl/routerctl/drvapi"
	"github.com/routerctl/routerctl/iface"
	"github.com/routerctl/routerctl/ifport"
	"github.com/routerctl/routerctl/ifvlan"
	"github.com/routerctl/routerctl/simdrv"
	"github.com/routerctl/routerctl/worker"
)

func newTestStack() (*iface.Registry, *ifport.Manager, *ifvlan.Manager) {
	reg := iface.NewRegistry()
	workers := worker.NewSet()
	ports := ifport.NewManager(reg, workers, func(devArgs string) (drvapi.Device, error) {
		return simdrv.New(simdrv.Config{DevArgs: devArgs})
	})
	vlans := ifvlan.NewManager(reg, ports)
	return reg, ports, vlans
}

func TestAddVLANInstallsFilterOnParent(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg, ports, vlans := newTestStack()

	parentID, e := ports.AddPort("net_sim_vlan_p1", "eth0")
	assert.NoError(e)

	childID, e := vlans.AddVLAN("eth0.100", parentID, 100, macaddr.Addr{})
	assert.NoError(e)

	child := reg.FromID(childID)
	assert.Equal(parentID, child.Parent)

	parent := reg.FromID(parentID)
	assert.Contains(parent.Children, childID)

	dev := parent.Info.(*ifport.Info).Device.(*simdrv.Device)
	assert.True(dev.HasVLANFilter(100))
}

func TestAddVLANDuplicateOnSameParentConflicts(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	_, ports, vlans := newTestStack()

	parentID, e := ports.AddPort("net_sim_vlan_p2", "eth1")
	assert.NoError(e)

	_, e = vlans.AddVLAN("eth1.200", parentID, 200, macaddr.Addr{})
	assert.NoError(e)

	_, e = vlans.AddVLAN("eth1.200dup", parentID, 200, macaddr.Addr{})
	assert.Error(e)
}

func TestAddVLANRejectsOutOfRangeID(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	_, ports, vlans := newTestStack()

	parentID, e := ports.AddPort("net_sim_vlan_p3", "eth2")
	assert.NoError(e)

	_, e = vlans.AddVLAN("eth2.bad", parentID, 4095, macaddr.Addr{})
	assert.Error(e)
}

func TestDelVLANRemovesFilterAndDetaches(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg, ports, vlans := newTestStack()

	parentID, e := ports.AddPort("net_sim_vlan_p4", "eth3")
	assert.NoError(e)
	childID, e := vlans.AddVLAN("eth3.300", parentID, 300, macaddr.Addr{})
	assert.NoError(e)

	assert.NoError(reg.Del(childID))

	parent := reg.FromID(parentID)
	assert.NotContains(parent.Children, childID)
	dev := parent.Info.(*ifport.Info).Device.(*simdrv.Device)
	assert.False(dev.HasVLANFilter(300))

	// re-adding the same (parent, vlanID) key now succeeds.
	_, e = vlans.AddVLAN("eth3.300.again", parentID, 300, macaddr.Addr{})
	assert.NoError(e)
}

func TestMCastMACDelegatesToParentFilter(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg, ports, vlans := newTestStack()

	mcast, e := macaddr.Parse("01:00:5e:00:00:01")
	assert.NoError(e)

	parentID, e := ports.AddPort("net_sim_vlan_p5", "eth4")
	assert.NoError(e)
	childID, e := vlans.AddVLAN("eth4.400", parentID, 400, mcast)
	assert.NoError(e)

	parent := reg.FromID(parentID)
	dev := parent.Info.(*ifport.Info).Device.(*simdrv.Device)
	assert.True(dev.HasMulticastMAC(mcast))

	assert.NoError(reg.Del(childID))
	assert.False(dev.HasMulticastMAC(mcast))
}

func TestMCastMACRejectsUnicast(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	_, ports, vlans := newTestStack()

	unicast, e := macaddr.Parse("02:00:00:00:00:01")
	assert.NoError(e)

	parentID, e := ports.AddPort("net_sim_vlan_p6", "eth5")
	assert.NoError(e)

	_, e = vlans.AddVLAN("eth5.500", parentID, 500, unicast)
	assert.Error(e)
}
