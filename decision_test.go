package xbar

import (
	"testing"

	"github.com/iti/rngstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionLookup(t *testing.T) {
	sched := CreateFIFOScheduler()
	src := CreateSwitch("dl-src", sched)
	dst := CreateSwitch("dl-dst", sched)
	hop := CreateSwitch("dl-hop", sched)

	ds := CreateDecisionStructure()

	// routing misconfiguration is fatal
	assert.Panics(t, func() { ds.Decision(src, dst) })

	ds.PutDecision(src, dst, hop)
	assert.Same(t, hop, ds.Decision(src, dst))

	ds.RemoveDecision(src, dst)
	assert.Panics(t, func() { ds.Decision(src, dst) })
}

func TestReservedCapacityBookkeeping(t *testing.T) {
	sched := CreateFIFOScheduler()
	in := CreateSwitch("rc-in", sched)
	out := CreateSwitch("rc-out", sched)
	edge := Edge{In: in, Out: out}

	ds := CreateDecisionStructure()
	assert.Equal(t, 0, ds.ReservedCapacity(edge))

	ds.TranslateReservedCapacity(edge, 5)
	assert.Equal(t, 5, ds.ReservedCapacity(edge))
	ds.TranslateReservedCapacity(edge, 3)
	assert.Equal(t, 8, ds.ReservedCapacity(edge))

	// translating back to zero deletes the entry outright
	ds.TranslateReservedCapacity(edge, -8)
	assert.Equal(t, 0, ds.ReservedCapacity(edge))
	assert.Equal(t, 0, ds.reserved.Len())

	assert.Panics(t, func() { ds.SetReservedCapacity(edge, -1) })
}

func TestPickRandomInputWeighting(t *testing.T) {
	rng := rngstream.New("pick-input")
	sched := CreateFIFOScheduler()
	heavy := CreateSwitch("pi-heavy", sched)
	light := CreateSwitch("pi-light", sched)
	out := CreateSwitch("pi-out", sched)

	ds := CreateDecisionStructure()

	// nothing routed through the output yet
	assert.Nil(t, ds.PickRandomInput(out, rng))

	ds.SetReservedCapacity(Edge{In: heavy, Out: out}, 9)
	ds.SetReservedCapacity(Edge{In: light, Out: out}, 1)

	counts := make(map[Node]int)
	const draws = 10000
	for i := 0; i < draws; i++ {
		input := ds.PickRandomInput(out, rng)
		require.NotNil(t, input)
		counts[input]++
	}
	assert.InDelta(t, 0.9, float64(counts[heavy])/draws, 0.02)
	assert.InDelta(t, 0.1, float64(counts[light])/draws, 0.02)
}

func TestPickRandomInputRestriction(t *testing.T) {
	rng := rngstream.New("pick-input-restricted")
	sched := CreateFIFOScheduler()
	heavy := CreateSwitch("pr-heavy", sched)
	light := CreateSwitch("pr-light", sched)
	out := CreateSwitch("pr-out", sched)

	ds := CreateDecisionStructure()
	ds.SetReservedCapacity(Edge{In: heavy, Out: out}, 9)
	ds.SetReservedCapacity(Edge{In: light, Out: out}, 1)

	// only the light input has traffic waiting, so the draw must
	// land there no matter the weights
	waiting := map[Edge]bool{{In: light, Out: out}: true}
	for i := 0; i < 200; i++ {
		assert.Same(t, light, ds.PickRandomInputAmong(out, rng, waiting))
	}

	// empty intersection yields no input
	assert.Nil(t, ds.PickRandomInputAmong(out, rng, map[Edge]bool{}))

	// the restricted draw must not disturb the underlying weights
	assert.Equal(t, 9, ds.ReservedCapacity(Edge{In: heavy, Out: out}))
	assert.Equal(t, 1, ds.ReservedCapacity(Edge{In: light, Out: out}))
}

func TestAddRemoveFlowRoundTrip(t *testing.T) {
	sched := CreateParallelScheduler()
	net := CreateNetwork("flow-round-trip", sched)

	gen := CreateGenerator("frt-gen", sched)
	rcv := CreateReceiver("frt-rcv", sched)
	sw := CreateSwitch("frt-sw", sched)
	net.AddNode(gen)
	net.AddNode(rcv)
	net.AddNode(sw)

	flow := CreateFlow([]Node{gen, sw, rcv}, 5)
	net.AddFlow(flow)

	swDS := sched.decisionStructure(sw)
	genDS := sched.decisionStructure(gen)
	assert.Same(t, rcv, swDS.Decision(gen, rcv))
	assert.Same(t, sw, genDS.Decision(gen, rcv))
	assert.Equal(t, 5, swDS.ReservedCapacity(Edge{In: gen, Out: rcv}))
	assert.Equal(t, 5, genDS.ReservedCapacity(Edge{In: gen, Out: sw}))
	assert.Same(t, flow, net.Flow(gen, rcv))

	net.RemoveFlow(flow)

	// the decision structures come back exactly empty
	assert.Equal(t, 0, len(swDS.decisions))
	assert.Equal(t, 0, len(genDS.decisions))
	assert.Equal(t, 0, swDS.reserved.Len())
	assert.Equal(t, 0, genDS.reserved.Len())
	assert.Nil(t, net.Flow(gen, rcv))
	assert.Equal(t, 0, net.flowsFromNode.Len())
}

func TestFlowValidation(t *testing.T) {
	sched := CreateFIFOScheduler()
	a := CreateSwitch("fv-a", sched)
	b := CreateSwitch("fv-b", sched)

	assert.Panics(t, func() { CreateFlow([]Node{a}, 1) })
	assert.Panics(t, func() { CreateFlow([]Node{a, nil}, 1) })
	assert.Panics(t, func() { CreateFlow([]Node{a, b}, 0) })
}

func TestAddFlowAccumulatesSharedCapacity(t *testing.T) {
	sched := CreateStatisticalScheduler()
	net := CreateNetwork("shared-capacity", sched)

	gen := CreateGenerator("sc-gen", sched)
	rcvA := CreateReceiver("sc-rcv-a", sched)
	rcvB := CreateReceiver("sc-rcv-b", sched)
	sw := CreateSwitch("sc-sw", sched)
	for _, node := range []Node{gen, rcvA, rcvB, sw} {
		net.AddNode(node)
	}

	net.AddFlow(CreateFlow([]Node{gen, sw, rcvA}, 3))
	net.AddFlow(CreateFlow([]Node{gen, sw, rcvB}, 4))

	// both flows traverse the generator's single uplink
	genDS := sched.decisionStructure(gen)
	assert.Equal(t, 7, genDS.ReservedCapacity(Edge{In: gen, Out: sw}))

	// at the switch they fan out to distinct output ports
	swDS := sched.decisionStructure(sw)
	assert.Equal(t, 3, swDS.ReservedCapacity(Edge{In: gen, Out: rcvA}))
	assert.Equal(t, 4, swDS.ReservedCapacity(Edge{In: gen, Out: rcvB}))
}
