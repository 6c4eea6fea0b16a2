// Package pktpool accounts for the per-port packet buffer pool: sizing
// it from configured queue depths and tracking its NUMA placement.
// Follows the sizing conventions of a DPDK-style mempool helper; this
// package does not itself allocate memory (that is the driver's job)
// but computes the parameters a real driver's pool-creation call would
// take.
package pktpool

import (
	"math/bits"

	pkgmath "github.com/pkg/math"

	"github.com/routerctl/routerctl/numa"
)

// DefaultCacheSize is the conventional per-core cache size for packet
// buffer pools.
const DefaultCacheSize = 256

// ComputeCapacity rounds capacity up to the next power of two minus one,
// per spec §4.3 "Pool allocation": pool size = round up to next
// power-of-two minus one of sum(rxq_size)+sum(txq_size)+burst_size.
func ComputeCapacity(rxQueueSizes, txQueueSizes []int, burstSize int) int {
	sum := burstSize
	for _, s := range rxQueueSizes {
		sum += s
	}
	for _, s := range txQueueSizes {
		sum += s
	}
	if sum <= 0 {
		return 0
	}
	// round up to next power of two, then subtract one.
	rounded := 1 << bits.Len(uint(sum-1))
	return rounded - 1
}

// Pool is the control plane's record of a port's packet buffer pool.
// It is owned by the port and freed on teardown (spec §4.3 Teardown).
type Pool struct {
	Capacity  int
	CacheSize int
	Socket    numa.Socket
}

// New creates a Pool with the standard cache size, matching spec §4.3
// step "Cache size 256", clamped so a small pool never gets a cache
// larger than the pool itself.
func New(capacity int, socket numa.Socket) *Pool {
	return &Pool{
		Capacity:  capacity,
		CacheSize: pkgmath.MinInt(DefaultCacheSize, capacity),
		Socket:    socket,
	}
}
