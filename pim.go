package xbar

// pim.go implements parallel-iterative matching.  Every round the
// pending queues request their output ports, each requested port
// grants one requester at random, each granted input accepts one
// grant at random, and matched ports drop out of contention.  On a
// fully loaded N-by-N switch the matching is maximal after an
// expected O(log N) rounds.

import "github.com/iti/rngstream"

// PIMResult carries the matching a PIM run produced together with the
// number of rounds it took, which the maximal-iterations harness
// records
type PIMResult struct {
	Program []Edge
	Rounds  int
}

// PIMProgram runs request/grant/accept rounds over the supplied edges
// until maxRounds rounds have run or no edge is left to schedule.  A
// maxRounds of zero lifts the round limit, running until the matching
// is maximal; since every round over a non-empty edge set matches at
// least one input, that takes at most as many rounds as there are
// distinct inputs.
func PIMProgram(voqs []Edge, maxRounds int, rng *rngstream.RngStream) PIMResult {
	program := make([]Edge, 0)
	remaining := make([]Edge, len(voqs))
	copy(remaining, voqs)

	rounds := 0
	for len(remaining) > 0 && (maxRounds == 0 || rounds < maxRounds) {
		rounds++

		// request phase: every pending edge is a request by its
		// input against its output
		requests := CreateWeightedMultiMap[Node, Edge]()
		for _, edge := range remaining {
			requests.Put(edge.Out, edge, 1.0)
		}

		// grant phase: every requested output grants one requester,
		// chosen uniformly
		grants := CreateWeightedMultiMap[Node, Edge]()
		for _, output := range requests.Keys() {
			edge, ok := requests.PickRandom(output, rng)
			if !ok {
				continue
			}
			grants.Put(edge.In, edge, 1.0)
		}

		// accept phase: every granted input accepts one grant,
		// chosen uniformly, and the matched ports leave the pool
		matchedInputs := make(map[Node]bool)
		matchedOutputs := make(map[Node]bool)
		for _, input := range grants.Keys() {
			edge, ok := grants.PickRandom(input, rng)
			if !ok {
				continue
			}
			program = append(program, edge)
			matchedInputs[edge.In] = true
			matchedOutputs[edge.Out] = true
		}

		unmatched := make([]Edge, 0, len(remaining))
		for _, edge := range remaining {
			if matchedInputs[edge.In] || matchedOutputs[edge.Out] {
				continue
			}
			unmatched = append(unmatched, edge)
		}
		remaining = unmatched
	}

	return PIMResult{Program: program, Rounds: rounds}
}

// ParallelScheduler schedules switches with parallel-iterative
// matching over their virtual output queues
type ParallelScheduler struct {
	voqScheduler

	// rounds per time slot; zero means run to a maximal matching
	rounds int
}

// CreateParallelScheduler is a constructor, using the default round
// count
func CreateParallelScheduler() *ParallelScheduler {
	ps := new(ParallelScheduler)
	ps.initVOQScheduler(ps)
	ps.rounds = PIMRounds
	return ps
}

// SetRounds overrides the per-slot round count.  Zero runs every slot
// to a maximal matching.
func (ps *ParallelScheduler) SetRounds(rounds int) {
	if rounds < 0 {
		panic("round count is negative")
	}
	ps.rounds = rounds
}

// plan matches the queues with pending traffic against the output
// ports that are idle this slot
func (ps *ParallelScheduler) plan(t int, node Node, tag *voqTable, ds *DecisionStructure, rng *rngstream.RngStream) []Edge {
	voqs := make([]Edge, 0, len(tag.available()))
	for _, edge := range tag.available() {
		if node.core().isIdle(edge.Out) {
			voqs = append(voqs, edge)
		}
	}
	return PIMProgram(voqs, ps.rounds, rng).Program
}
