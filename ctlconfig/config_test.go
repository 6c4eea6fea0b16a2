package ctlconfig_test

import (
	"os"
	"testing"

	"github.com/routerctl/routerctl/core/testenv"
	"github.com/routerctl/routerctl/ctlconfig"
)

func writeConfig(t *testing.T, body string) string {
	name := testenv.TempName(t, "routerd.yaml")
	if e := os.WriteFile(name, []byte(body), 0o600); e != nil {
		t.Fatalf("write %s: %v", name, e)
	}
	return name
}

func TestLoadParsesPortsAndListenAddr(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	path := writeConfig(t, `
gqlListen: "localhost:4000"
ports:
  - devArgs: net_sim_p0
    name: eth0
    nRxq: 2
    rxqSize: 1024
`)

	cfg, e := ctlconfig.Load(path)
	assert.NoError(e)
	assert.Equal("localhost:4000", cfg.ListenGQL)
	assert.Len(cfg.Ports, 1)
	assert.Equal("eth0", cfg.Ports[0].Name)
	assert.Equal(2, cfg.Ports[0].NRxq)
	assert.Equal(1024, cfg.Ports[0].RxqSize)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	_, e := ctlconfig.Load(testenv.TempName(t, "does-not-exist.yaml"))
	assert.Error(e)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	path := writeConfig(t, "ports: [this is not a port list")
	_, e := ctlconfig.Load(path)
	assert.Error(e)
}
