package xbar

// statistical.go implements matching weighted by provisioned
// capacity.  Idle outputs draw an input in proportion to the capacity
// reserved across the (input, output) edge, the draw is modulated by
// a secondary uniform weight, and whatever contention the weighted
// round leaves behind is swept up by a short PIM pass.  Flows with
// more reserved capacity are matched more often, pulling the
// stationary schedule towards the capacity allocation.

import "github.com/iti/rngstream"

// StatisticalScheduler schedules switches with capacity-weighted
// matching over their virtual output queues
type StatisticalScheduler struct {
	voqScheduler

	// weighted rounds per time slot
	rounds int

	// PIM rounds run over the residue of the weighted rounds
	cleanupRounds int
}

// CreateStatisticalScheduler is a constructor, using the default
// round counts
func CreateStatisticalScheduler() *StatisticalScheduler {
	ss := new(StatisticalScheduler)
	ss.initVOQScheduler(ss)
	ss.rounds = StatRounds
	ss.cleanupRounds = StatPIMRounds
	return ss
}

// plan runs the weighted rounds and appends the PIM cleanup
func (ss *StatisticalScheduler) plan(t int, node Node, tag *voqTable, ds *DecisionStructure, rng *rngstream.RngStream) []Edge {
	// pending edges whose output port is idle this slot, and the
	// subset view the restricted capacity draw intersects against
	pending := make([]Edge, 0, len(tag.available()))
	pendingSet := make(map[Edge]bool)
	for _, edge := range tag.available() {
		if node.core().isIdle(edge.Out) {
			pending = append(pending, edge)
			pendingSet[edge] = true
		}
	}

	idle := node.core().idleOutputPorts()
	idleSet := make(map[Node]bool, len(idle))
	for _, output := range idle {
		idleSet[output] = true
	}

	program := make([]Edge, 0)
	for round := 0; round < ss.rounds; round++ {
		// grant phase: every idle output with pending traffic draws
		// an input weighted by reserved capacity, then weights the
		// grant by a uniform draw from {0..X}, X the capacity
		// reserved across the granted edge
		grants := CreateWeightedMultiMap[Node, Node]()
		for _, output := range idle {
			if !idleSet[output] {
				continue
			}
			input := ds.PickRandomInputAmong(output, rng, pendingSet)
			if input == nil {
				continue
			}
			x := ds.ReservedCapacity(Edge{In: input, Out: output})
			m := rng.RandInt(0, x)
			grants.Put(input, output, float64(m))
		}

		// accept phase: every granted input accepts one grant in
		// proportion to the secondary weights.  An input whose
		// grants all weighed zero sits the round out.
		matchedInputs := make(map[Node]bool)
		matchedOutputs := make(map[Node]bool)
		for _, input := range grants.Keys() {
			output, ok := grants.PickRandom(input, rng)
			if !ok {
				continue
			}
			edge := Edge{In: input, Out: output}
			if tag.length(edge) == 0 {
				continue
			}
			program = append(program, edge)
			matchedInputs[input] = true
			matchedOutputs[output] = true
		}

		// matched ports leave contention for the remaining rounds
		// and the cleanup pass
		residue := make([]Edge, 0, len(pending))
		for _, edge := range pending {
			if matchedInputs[edge.In] || matchedOutputs[edge.Out] {
				delete(pendingSet, edge)
				continue
			}
			residue = append(residue, edge)
		}
		pending = residue
		for output := range matchedOutputs {
			delete(idleSet, output)
		}
	}

	res := PIMProgram(pending, ss.cleanupRounds, rng)
	program = append(program, res.Program...)
	return program
}
