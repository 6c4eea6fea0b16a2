package ifport_test

import (
	"testing"

	"github.com/routerctl/routerctl/core/testenv"
	"github.com/routerctl/routerctl/drvapi"
	"github.com/routerctl/routerctl/iface"
	"github.com/routerctl/routerctl/ifport"
	"github.com/routerctl/routerctl/numa"
	"github.com/routerctl/routerctl/simdrv"
	"github.com/routerctl/routerctl/worker"
)

func simFactory() ifport.DeviceFactory {
	return func(devArgs string) (drvapi.Device, error) {
		return simdrv.New(simdrv.Config{DevArgs: devArgs})
	}
}

// simFactoryOnSocket maps each devArgs string to the NUMA socket its
// simulated device should report, so callers can put two ports on
// distinct sockets and get distinct default workers.
func simFactoryOnSocket(sockets map[string]numa.Socket) ifport.DeviceFactory {
	return func(devArgs string) (drvapi.Device, error) {
		return simdrv.New(simdrv.Config{DevArgs: devArgs, NumaSocket: sockets[devArgs]})
	}
}

func newTestManager() (*iface.Registry, *worker.Set, *ifport.Manager) {
	reg := iface.NewRegistry()
	workers := worker.NewSet()
	m := ifport.NewManager(reg, workers, simFactory())
	return reg, workers, m
}

func TestAddPortConfiguresDefaults(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg, workers, m := newTestManager()

	id, e := m.AddPort("net_sim_defaults", "eth0")
	assert.NoError(e)

	i := reg.FromID(id)
	assert.NotNil(i)
	api := m.ToAPI(i).(ifport.API)
	assert.False(api.MAC.IsZero())
	assert.GreaterOrEqual(api.MTU, 64)
	assert.Equal(workers.Count(), api.NTxq)
	assert.Equal(1, api.NRxq)
	assert.False(api.Up)
	assert.False(api.Running)
}

func TestAddPortDuplicateNameConflicts(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	_, _, m := newTestManager()

	_, e := m.AddPort("net_sim_dup1", "eth1")
	assert.NoError(e)
	_, e = m.AddPort("net_sim_dup2", "eth1")
	assert.Error(e)
}

func TestReconfigQueueSizing(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg, _, m := newTestManager()

	id, e := m.AddPort("net_sim_qsize", "eth2")
	assert.NoError(e)
	i := reg.FromID(id)

	e = reg.Set(id, ifport.SetQueueSizing, i.Flags, i.MTU, i.VRF, &ifport.Info{NRxq: 1, RxqSize: 2048, TxqSize: 2048})
	assert.NoError(e)

	api := m.ToAPI(reg.FromID(id)).(ifport.API)
	assert.Equal(2048, api.RxqSize)
	assert.Equal(2048, api.TxqSize)
}

func TestSetFlagsBringsPortUp(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg, _, m := newTestManager()

	id, e := m.AddPort("net_sim_flags", "eth3")
	assert.NoError(e)
	i := reg.FromID(id)

	e = reg.Set(id, iface.SetFlags, iface.FlagUp, i.MTU, i.VRF, &ifport.Info{})
	assert.NoError(e)

	i = reg.FromID(id)
	assert.True(i.IsUp())
	assert.NotZero(i.State)
}

func TestTeardownShrinksWorkerOnLastPort(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg, workers, m := newTestManager()

	idA, e := m.AddPort("net_sim_shrink1", "eth4")
	assert.NoError(e)
	idB, e := m.AddPort("net_sim_shrink2", "eth5")
	assert.NoError(e)
	assert.Equal(1, workers.Count())

	assert.NoError(reg.Del(idA))
	assert.Equal(1, workers.Count(), "worker survives while eth5 still uses it")

	bAPI := m.ToAPI(reg.FromID(idB)).(ifport.API)
	assert.Equal(1, bAPI.NTxq)

	assert.NoError(reg.Del(idB))
	assert.Equal(0, workers.Count())
}

func TestTeardownOfPortsSharingOneWorker(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg, workers, m := newTestManager()

	idA, e := m.AddPort("net_sim_cascade1", "eth6")
	assert.NoError(e)
	idB, e := m.AddPort("net_sim_cascade2", "eth7")
	assert.NoError(e)
	assert.Equal(1, workers.Count())

	aAPI := m.ToAPI(reg.FromID(idA)).(ifport.API)
	bAPI := m.ToAPI(reg.FromID(idB)).(ifport.API)
	assert.Equal(1, aAPI.NTxq)
	assert.Equal(1, bAPI.NTxq)

	assert.NoError(reg.Del(idB))
	assert.NoError(reg.Del(idA))
	assert.Equal(0, workers.Count())
}

func TestTeardownCascadesTxqResizeOntoSurvivingSocket(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	reg := iface.NewRegistry()
	workers := worker.NewSet()
	m := ifport.NewManager(reg, workers, simFactoryOnSocket(map[string]numa.Socket{
		"net_sim_numa0": numa.FromID(0),
		"net_sim_numa1": numa.FromID(1),
	}))

	idA, e := m.AddPort("net_sim_numa0", "eth8")
	assert.NoError(e)
	idB, e := m.AddPort("net_sim_numa1", "eth9")
	assert.NoError(e)
	assert.Equal(2, workers.Count(), "distinct NUMA sockets get distinct default workers")

	aAPI := m.ToAPI(reg.FromID(idA)).(ifport.API)
	bAPI := m.ToAPI(reg.FromID(idB)).(ifport.API)
	assert.Equal(2, aAPI.NTxq)
	assert.Equal(2, bAPI.NTxq)

	assert.NoError(reg.Del(idA))
	assert.Equal(1, workers.Count(), "socket 0's worker is torn down; socket 1's survives")

	bAPI = m.ToAPI(reg.FromID(idB)).(ifport.API)
	assert.Equal(1, bAPI.NTxq, "surviving port's TX queue count drops by one via the reconfig cascade")
}
