// Package worker maintains the set of datapath worker threads and
// assigns RX/TX queues to them (spec §4.4), following the shape of a
// NUMA-local lcore allocator that hands out worker threads to roles;
// here the "lcore" is abstracted to a bare CPU id and the allocation
// policy is the queue-assignment algorithm of spec §4.4 rather than
// thread launch.
package worker

import (
	"github.com/routerctl/routerctl/ctlerr"
	"github.com/routerctl/routerctl/numa"
)

// MaxRxQueuesPerPort is the single-word occupancy bitmap cap from
// spec §4.4's "Cap" paragraph and §9's first open question: rather
// than widen the bitmap, requests above this are rejected explicitly.
const MaxRxQueuesPerPort = 64

// QueueMap is a single queue assignment: port p, queue id, and whether
// the packet graph has plugged it in yet.
type QueueMap struct {
	Port    int
	Queue   int
	Enabled bool
}

// Worker is a datapath thread pinned to CPUID, with independent RX and
// TX queue-map lists (spec §3 "Worker").
type Worker struct {
	CPUID  int
	Socket numa.Socket
	RxMaps []QueueMap
	TxMaps []QueueMap
}

// Set is the process-wide list of datapath workers, registered in
// worker order (spec §4.4 "for each worker in registration order").
// It is explicit state per spec §9, not a package global.
type Set struct {
	workers []*Worker
}

// NewSet creates an empty worker set.
func NewSet() *Set { return &Set{} }

// Add registers a new worker pinned to cpuID. Order of registration
// matters: it determines TX-queue numbering in Assign.
func (s *Set) Add(cpuID int, socket numa.Socket) *Worker {
	w := &Worker{CPUID: cpuID, Socket: socket}
	s.workers = append(s.workers, w)
	return w
}

// Remove deletes w from the set. Callers must have already confirmed
// w holds no RX queues (spec §4.3 Teardown: "any worker whose RX queue
// list is empty is destroyed").
func (s *Set) Remove(w *Worker) {
	for i, cur := range s.workers {
		if cur == w {
			s.workers = append(s.workers[:i], s.workers[i+1:]...)
			return
		}
	}
}

// List returns the workers in registration order.
func (s *Set) List() []*Worker { return s.workers }

// Count returns the number of registered workers.
func (s *Set) Count() int { return len(s.workers) }

// EnsureDefault guarantees at least one worker exists on socket,
// creating one pinned to an implementer-supplied CPU if none exists,
// per spec §4.3 step 1 "Ensure at least one datapath worker exists on
// the port's NUMA socket." newCPUID is invoked only when a new worker
// must be created.
func (s *Set) EnsureDefault(socket numa.Socket, newCPUID func() int) *Worker {
	if w := s.defaultFor(socket); w != nil {
		return w
	}
	return s.Add(newCPUID(), socket)
}

// defaultFor chooses the first worker whose socket matches socket
// (numa.Socket.Match: the same socket, or a worker whose socket is
// Any), or the first worker if socket is Any, per spec §4.4 step 3.
func (s *Set) defaultFor(socket numa.Socket) *Worker {
	if len(s.workers) == 0 {
		return nil
	}
	if socket.IsAny() {
		return s.workers[0]
	}
	for _, w := range s.workers {
		if w.Socket.Match(socket) {
			return w
		}
	}
	return nil
}

// Assign applies the queue-assignment algorithm of spec §4.4 for port
// p with nRxq RX queues and NUMA affinity socket. It is idempotent:
// calling it twice in a row produces the same maps (the
// "Queue reassignment stability" law of spec §8).
func (s *Set) Assign(p int, nRxq int, socket numa.Socket) error {
	if nRxq > MaxRxQueuesPerPort {
		return ctlerr.New(ctlerr.Resource, "port %d requests %d RX queues, exceeds cap %d", p, nRxq, MaxRxQueuesPerPort)
	}

	// Step 1: one TX-map per worker, renumbered in registration order.
	nextTxq := 0
	for _, w := range s.workers {
		w.TxMaps = dropPort(w.TxMaps, p)
		w.TxMaps = append(w.TxMaps, QueueMap{Port: p, Queue: nextTxq, Enabled: false})
		nextTxq++
	}

	// Step 2: collect RX survivors (id < nRxq), discard stale ones.
	covered := make(map[int]bool, nRxq)
	for _, w := range s.workers {
		kept := w.RxMaps[:0:0]
		for _, m := range w.RxMaps {
			if m.Port != p {
				kept = append(kept, m)
				continue
			}
			if m.Queue < nRxq {
				kept = append(kept, m)
				covered[m.Queue] = true
			}
		}
		w.RxMaps = kept
	}

	// Step 3: default worker for uncovered queues.
	def := s.defaultFor(socket)
	if def == nil {
		return ctlerr.New(ctlerr.Resource, "no datapath worker available for port %d", p)
	}

	// Step 4: push uncovered queue ids onto the default worker.
	for q := 0; q < nRxq; q++ {
		if !covered[q] {
			def.RxMaps = append(def.RxMaps, QueueMap{Port: p, Queue: q, Enabled: false})
		}
	}
	return nil
}

// Unplug removes every queue map referencing port p from every
// worker, per spec §4.3 Teardown's "Unplug the port from any datapath
// worker".
func (s *Set) Unplug(p int) {
	for _, w := range s.workers {
		w.RxMaps = dropPort(w.RxMaps, p)
		w.TxMaps = dropPort(w.TxMaps, p)
	}
}

// ShrinkIdle destroys every worker left with no RX queues after a
// port teardown, per spec §4.3 Teardown. It returns true if any worker
// was removed, signalling callers to reconfigure surviving ports'
// TX-queue sets (spec §4.3: "if worker count dropped, every remaining
// port is reconfigured with mask=N_TXQS").
func (s *Set) ShrinkIdle() bool {
	var shrank bool
	kept := s.workers[:0:0]
	for _, w := range s.workers {
		if len(w.RxMaps) == 0 {
			shrank = true
			continue
		}
		kept = append(kept, w)
	}
	s.workers = kept
	return shrank
}

func dropPort(maps []QueueMap, p int) []QueueMap {
	kept := maps[:0:0]
	for _, m := range maps {
		if m.Port != p {
			kept = append(kept, m)
		}
	}
	return kept
}
