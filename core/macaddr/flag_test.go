package macaddr_test

import (
	"flag"
	"testing"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/core/testenv"
)

func TestFlag(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	var f flag.FlagSet
	var m macaddr.Flag
	f.Var(&m, "m", "")

	assert.Error(f.Parse([]string{"-m", "x"}))
	assert.NoError(f.Parse([]string{"-m", "02:00:00:00:00:A0"}))
	assert.False(m.Empty())

	text, e := m.MarshalText()
	assert.NoError(e)
	assert.Equal("02:00:00:00:00:a0", string(text))

	var m2 macaddr.Flag
	assert.True(m2.Empty())
	assert.NoError(m2.UnmarshalText(text))
	assert.Equal(m.HardwareAddr, m2.HardwareAddr)
}
