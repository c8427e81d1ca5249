package xbar

import (
	"fmt"

	"github.com/iti/rngstream"
)

// Edge identifies a virtual output queue at a switch by the neighbor
// the traffic arrived from and the neighbor it leaves towards.  The
// two coordinates are the input and output ports the queue contends
// for, so a matching is just a set of edges with distinct inputs and
// distinct outputs.
type Edge struct {
	In  Node
	Out Node
}

// srcDst keys the next-hop table by the endpoints of a flow
type srcDst struct {
	src Node
	dst Node
}

// DecisionStructure holds the forwarding state of one switch: the
// next-hop table consulted for every message that transits the
// switch, and the per-edge reserved capacities that statistical
// matching samples from.
type DecisionStructure struct {
	// (flow source, flow destination) -> next hop
	decisions map[srcDst]Node

	// output port -> edges through it, weighted by the capacity
	// reserved across each edge.  Zero-capacity edges are deleted.
	reserved *WeightedMultiMap[Node, Edge]
}

// CreateDecisionStructure is a constructor
func CreateDecisionStructure() *DecisionStructure {
	ds := new(DecisionStructure)
	ds.decisions = make(map[srcDst]Node)
	ds.reserved = CreateWeightedMultiMap[Node, Edge]()
	return ds
}

// Decision returns the next node a message from source bound for
// destination should be forwarded to.  An undefined lookup means the
// routing tables were never provisioned for the flow, which is fatal.
func (ds *DecisionStructure) Decision(source, destination Node) Node {
	nextHop, present := ds.decisions[srcDst{src: source, dst: destination}]
	if !present {
		panic(fmt.Errorf("next hop undefined for flow %s -> %s",
			source.DevName(), destination.DevName()))
	}
	return nextHop
}

// PutDecision routes messages from source bound for destination
// towards nextHop
func (ds *DecisionStructure) PutDecision(source, destination, nextHop Node) {
	if nextHop == nil {
		panic("next hop is nil")
	}
	ds.decisions[srcDst{src: source, dst: destination}] = nextHop
}

// RemoveDecision makes the next hop for the given flow undefined again
func (ds *DecisionStructure) RemoveDecision(source, destination Node) {
	delete(ds.decisions, srcDst{src: source, dst: destination})
}

// ReservedCapacity returns the capacity reserved across the edge, in
// messages per frame
func (ds *DecisionStructure) ReservedCapacity(edge Edge) int {
	return int(ds.reserved.WeightOf(edge.Out, edge))
}

// SetReservedCapacity pins the capacity reserved across the edge.
// Setting zero deletes the entry.
func (ds *DecisionStructure) SetReservedCapacity(edge Edge, amount int) {
	if amount < 0 {
		panic(fmt.Errorf("reserved capacity %d is negative", amount))
	}
	if amount == 0 {
		ds.reserved.Remove(edge.Out, edge)
		return
	}
	ds.reserved.Put(edge.Out, edge, float64(amount))
}

// TranslateReservedCapacity shifts the capacity reserved across the
// edge by the given amount
func (ds *DecisionStructure) TranslateReservedCapacity(edge Edge, amount int) {
	ds.SetReservedCapacity(edge, ds.ReservedCapacity(edge)+amount)
}

// PickRandomInput returns an input port with probability proportional
// to the capacity reserved between it and the given output, or nil if
// no flow is routed through the output
func (ds *DecisionStructure) PickRandomInput(output Node, rng *rngstream.RngStream) Node {
	edge, ok := ds.reserved.PickRandom(output, rng)
	if !ok {
		return nil
	}
	return edge.In
}

// PickRandomInputAmong is PickRandomInput restricted to the supplied
// candidate edges, typically the queues with messages waiting.  The
// weighted set for the output is intersected with the candidates
// before the draw; an empty intersection yields nil.
func (ds *DecisionStructure) PickRandomInputAmong(output Node, rng *rngstream.RngStream, candidates map[Edge]bool) Node {
	set := ds.reserved.Get(output)
	if set == nil {
		return nil
	}
	restricted := set.Clone()
	restricted.Retain(candidates)
	edge, ok := restricted.PickRandom(rng)
	if !ok {
		return nil
	}
	return edge.In
}
