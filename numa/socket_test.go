package numa_test

import (
	"testing"

	"github.com/routerctl/routerctl/core/testenv"
	"github.com/routerctl/routerctl/numa"
)

func TestSocketFromIDAny(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	assert.True(numa.FromID(-1).IsAny())
	assert.True(numa.FromID(numa.MaxSockets).IsAny())

	s := numa.FromID(2)
	assert.False(s.IsAny())
	assert.Equal(2, s.ID())
}

func TestSocketMatch(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	var any numa.Socket
	s0 := numa.FromID(0)
	s1 := numa.FromID(1)

	assert.True(any.Match(s0))
	assert.True(s0.Match(any))
	assert.True(s0.Match(s0))
	assert.False(s0.Match(s1))
}

func TestSocketMarshalJSON(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	var any numa.Socket
	assert.Equal("null", testenv.ToJSON(any))
	assert.Equal("3", testenv.ToJSON(numa.FromID(3)))
}

func TestSocketString(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	var any numa.Socket
	assert.Equal("any", any.String())
	assert.Equal("1", numa.FromID(1).String())
}
