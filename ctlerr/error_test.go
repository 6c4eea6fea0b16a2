package ctlerr_test

import (
	"errors"
	"syscall"
	"testing"

	"github.com/routerctl/routerctl/core/testenv"
	"github.com/routerctl/routerctl/ctlerr"
)

func TestNewIsMatchedByKind(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	e := ctlerr.New(ctlerr.NotFound, "port %q not found", "eth0")
	assert.True(ctlerr.Is(e, ctlerr.NotFound))
	assert.False(ctlerr.Is(e, ctlerr.Conflict))
	assert.Equal(syscall.ENOENT, e.Syscall())
}

func TestWrapUnwrapsCause(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	cause := errors.New("underlying failure")
	e := ctlerr.Wrap(ctlerr.Busy, cause, "teardown port %d", 3)
	assert.True(ctlerr.Is(e, ctlerr.Busy))
	assert.ErrorIs(e, cause)
	assert.Equal(syscall.EBUSY, e.Syscall())
}

func TestFromDriverCarriesDriverErrno(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	e := ctlerr.FromDriver(syscall.ENODEV, "configure port %d", 1)
	assert.True(ctlerr.Is(e, ctlerr.Driver))
	assert.Equal(syscall.ENODEV, e.Syscall())
}

func TestFromDriverWithoutErrnoFallsBackToKind(t *testing.T) {
	assert, _ := testenv.MakeAR(t)

	e := ctlerr.FromDriver(errors.New("opaque failure"), "configure port %d", 1)
	assert.True(ctlerr.Is(e, ctlerr.Driver))
	assert.Equal(syscall.EIO, e.Syscall())
}
