package simdrv_test

import (
	"testing"

	"github.com/routerctl/routerctl/core/testenv"
	"github.com/routerctl/routerctl/drvapi"
	"github.com/routerctl/routerctl/simdrv"
)

func TestNewRejectsDuplicateName(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	d, e := simdrv.New(simdrv.Config{DevArgs: "net_sim_dup1"})
	assert.NoError(e)
	defer func() {
		assert.NoError(d.Close())
	}()

	_, e = simdrv.New(simdrv.Config{DevArgs: "net_sim_dup1"})
	assert.Error(e)
}

func TestConfigureRejectsTooManyQueues(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	d, e := simdrv.New(simdrv.Config{DevArgs: "net_sim_cap1", MaxRxQueues: 1})
	assert.NoError(e)
	defer func() {
		assert.NoError(d.Close())
	}()

	e = d.Configure(drvapi.Config{
		RxQueues: []drvapi.RxQueueConfig{{}, {}},
	})
	assert.Error(e)
}

func TestCloseRejectsWhileStarted(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	d, e := simdrv.New(simdrv.Config{DevArgs: "net_sim_close1"})
	assert.NoError(e)
	assert.NoError(d.Start())

	assert.Error(d.Close())
	assert.NoError(d.Stop(drvapi.StopReset))
	assert.NoError(d.Close())
}

func TestConfigureAfterStopDetach(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	d, e := simdrv.New(simdrv.Config{DevArgs: "net_sim_detach1"})
	assert.NoError(e)
	defer func() {
		assert.NoError(d.Close())
	}()

	assert.NoError(d.Configure(drvapi.Config{
		RxQueues: []drvapi.RxQueueConfig{{}},
		TxQueues: []drvapi.TxQueueConfig{{}},
	}))
	assert.NoError(d.Stop(drvapi.StopDetach))

	assert.NoError(d.Configure(drvapi.Config{}))
}

func TestVLANAndMulticastFilterBookkeeping(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	d, e := simdrv.New(simdrv.Config{DevArgs: "net_sim_filter1"})
	assert.NoError(e)
	defer func() {
		assert.NoError(d.Close())
	}()

	assert.False(d.HasVLANFilter(100))
	assert.NoError(d.AddVLANFilter(100))
	assert.True(d.HasVLANFilter(100))
	assert.NoError(d.DelVLANFilter(100))
	assert.False(d.HasVLANFilter(100))
}
