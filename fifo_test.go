package xbar

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// burstGenerator emits a fixed burst of messages towards one sink on
// the first tick, which pins down delivery schedules exactly
type burstGenerator struct {
	deferredCore
	sink  Node
	count int
}

func createBurstGenerator(name string, sched Scheduler, count int) *burstGenerator {
	bg := new(burstGenerator)
	bg.initDeferredCore(name, bg, sched)
	bg.count = count
	return bg
}

func (bg *burstGenerator) receive(t int, msg *Message) {
	panic(fmt.Errorf("burst generator %s received a message", bg.DevName()))
}

func (bg *burstGenerator) onTick(t int) {
	if t == 0 && bg.sink != nil {
		for i := 0; i < bg.count; i++ {
			bg.forward(t, bg, CreateMessage(bg, bg.sink, t))
		}
	}
}

// stepNetwork drives every node of the network through ticks
// [from, to) directly, without the event manager
func stepNetwork(net *Network, from, to int) {
	for t := from; t < to; t++ {
		for _, node := range net.Nodes() {
			node.core().update(t)
		}
	}
}

// A burst of five messages over a generator, one switch, and one
// receiver drains at one message per tick, in order.
func TestFIFOSingleFlowDrainsInOrder(t *testing.T) {
	sched := CreateFIFOScheduler()
	net := CreateNetwork("fifo-single", sched)

	gen := createBurstGenerator("fs-gen", sched, 5)
	sw := CreateSwitch("fs-sw", sched)
	rcv := CreateReceiver("fs-rcv", sched)
	gen.sink = rcv
	for _, node := range []Node{gen, sw, rcv} {
		net.AddNode(node)
	}
	net.AddFlow(CreateFlow([]Node{gen, sw, rcv}, 1))

	stepNetwork(net, 0, 10)

	require.Equal(t, 5, rcv.Received())
	// one hop of queueing plus two unit-rate link traversals puts
	// the k-th message at the receiver on tick k+2
	for idx, rec := range rcv.records {
		assert.Equal(t, idx+2, rec.arrival)
		assert.Same(t, gen, rec.source)
	}
}

// With two provisioned outputs but traffic for only one, the idle
// output sees nothing and no routing fault occurs.
func TestFIFOSecondOutputStaysQuiet(t *testing.T) {
	sched := CreateFIFOScheduler()
	net := CreateNetwork("fifo-quiet", sched)

	gen := createBurstGenerator("fq-gen", sched, 5)
	sw := CreateSwitch("fq-sw", sched)
	rcv := CreateReceiver("fq-rcv", sched)
	dark := CreateReceiver("fq-dark", sched)
	gen.sink = rcv
	for _, node := range []Node{gen, sw, rcv, dark} {
		net.AddNode(node)
	}
	net.AddFlow(CreateFlow([]Node{gen, sw, rcv}, 1))
	net.AddFlow(CreateFlow([]Node{gen, sw, dark}, 1))

	stepNetwork(net, 0, 12)

	assert.Equal(t, 5, rcv.Received())
	assert.Equal(t, 0, dark.Received())
	for idx, rec := range rcv.records {
		assert.Equal(t, idx+2, rec.arrival)
	}
}

// A flow through two switches still delivers everything, with the
// extra hop adding one tick per message.
func TestFIFOMultiHopDelivery(t *testing.T) {
	sched := CreateFIFOScheduler()
	net := CreateNetwork("fifo-multihop", sched)

	gen := createBurstGenerator("fm-gen", sched, 3)
	sw1 := CreateSwitch("fm-sw1", sched)
	sw2 := CreateSwitch("fm-sw2", sched)
	rcv := CreateReceiver("fm-rcv", sched)
	gen.sink = rcv
	for _, node := range []Node{gen, sw1, sw2, rcv} {
		net.AddNode(node)
	}
	net.AddFlow(CreateFlow([]Node{gen, sw1, sw2, rcv}, 1))

	stepNetwork(net, 0, 12)

	require.Equal(t, 3, rcv.Received())
	for idx, rec := range rcv.records {
		assert.Equal(t, idx+3, rec.arrival)
	}
}

// Two inputs contending for one output drain at one message per tick
// in total, and every message still arrives.
func TestFIFOOutputContention(t *testing.T) {
	sched := CreateFIFOScheduler()
	net := CreateNetwork("fifo-contention", sched)

	genA := createBurstGenerator("fc-gen-a", sched, 3)
	genB := createBurstGenerator("fc-gen-b", sched, 3)
	sw := CreateSwitch("fc-sw", sched)
	rcv := CreateReceiver("fc-rcv", sched)
	genA.sink = rcv
	genB.sink = rcv
	for _, node := range []Node{genA, genB, sw, rcv} {
		net.AddNode(node)
	}
	net.AddFlow(CreateFlow([]Node{genA, sw, rcv}, 1))
	net.AddFlow(CreateFlow([]Node{genB, sw, rcv}, 1))

	stepNetwork(net, 0, 20)

	require.Equal(t, 6, rcv.Received())
	// the receiver's single input port admits one message per tick
	for idx := 1; idx < len(rcv.records); idx++ {
		assert.Equal(t, rcv.records[idx-1].arrival+1, rcv.records[idx].arrival)
	}
}
