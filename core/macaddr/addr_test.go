package macaddr_test

import (
	"testing"

	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/core/testenv"
)

func TestAddrMakeRoundTrip(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	raw := make([]byte, 6)
	testenv.RandBytes(raw)
	raw[0] &^= 0x01 // force unicast so IsMulticast/IsUnicast are unambiguous

	a, e := macaddr.Make(raw)
	assert.NoError(e)
	testenv.BytesEqual(assert, raw, a.HardwareAddr())
	assert.True(a.IsUnicast())
	assert.False(a.IsMulticast())
}

func TestAddrMakeRejectsWrongLength(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	_, e := macaddr.Make([]byte{1, 2, 3})
	assert.Error(e)
}

func TestAddrIsZero(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	var zero macaddr.Addr
	assert.True(zero.IsZero())
	assert.False(zero.IsMulticast())
	assert.False(zero.IsUnicast())
}

func TestAddrJSONRoundTrip(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	a, e := macaddr.Parse("02:00:00:00:00:a0")
	assert.NoError(e)

	j := testenv.ToJSON(a)
	assert.Equal(`"02:00:00:00:00:a0"`, j)

	var decoded macaddr.Addr
	testenv.FromJSON(j, &decoded)
	assert.Equal(a, decoded)
}
