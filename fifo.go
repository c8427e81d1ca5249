package xbar

// fifo.go implements the head-of-line baseline.  Each input port
// keeps a single queue regardless of where its head is bound, so a
// blocked head message blocks everything behind it; the policy exists
// to give the VOQ matchers something to beat.

import "fmt"

// FIFOScheduler schedules switches with one first-in-first-out queue
// per input port and a single uniform-random grant round per slot
type FIFOScheduler struct {
	schedulerCore

	// per-switch input queues keyed by the neighbor the traffic
	// arrived from, with drained queues removed
	tags map[int]*fifoTable
}

// fifoTable holds one switch's input queues.  Like the VOQ table, the
// key set always equals the set of non-empty queues.
type fifoTable struct {
	queues map[Node][]*Message
	order  []Node
}

// createFIFOTable is a constructor
func createFIFOTable() *fifoTable {
	ft := new(fifoTable)
	ft.queues = make(map[Node][]*Message)
	ft.order = make([]Node, 0)
	return ft
}

// enqueue appends msg to the queue of the neighbor it arrived from
func (ft *fifoTable) enqueue(from Node, msg *Message) {
	_, present := ft.queues[from]
	if !present {
		ft.order = append(ft.order, from)
	}
	ft.queues[from] = append(ft.queues[from], msg)
}

// pop removes and returns the head of an input's queue, dropping the
// queue when it drains
func (ft *fifoTable) pop(from Node) *Message {
	queue, present := ft.queues[from]
	if !present {
		panic(fmt.Errorf("pop on empty input queue from %s", from.DevName()))
	}
	msg := queue[0]
	ft.queues[from] = queue[1:]
	if len(ft.queues[from]) == 0 {
		delete(ft.queues, from)
		for idx, n := range ft.order {
			if n == from {
				ft.order = append(ft.order[:idx], ft.order[idx+1:]...)
				break
			}
		}
	}
	return msg
}

// CreateFIFOScheduler is a constructor
func CreateFIFOScheduler() *FIFOScheduler {
	fs := new(FIFOScheduler)
	fs.initSchedulerCore()
	fs.tags = make(map[int]*fifoTable)
	return fs
}

// AddNode places a device under this scheduler's domain, creating its
// input queues and decision structure
func (fs *FIFOScheduler) AddNode(node Node) {
	fs.register(node)
	fs.tags[node.DevID()] = createFIFOTable()
}

// tag returns the input queues of a node under this scheduler's domain
func (fs *FIFOScheduler) tag(node Node) *fifoTable {
	tag, present := fs.tags[node.DevID()]
	if !present {
		panic(fmt.Errorf("%s is not under this scheduler's domain", node.DevName()))
	}
	return tag
}

// AddMessageToSchedule appends the message to the queue of the
// neighbor it arrived from
func (fs *FIFOScheduler) AddMessageToSchedule(t int, from Node, node Node, msg *Message) {
	fs.tag(node).enqueue(from, msg)
}

// ScheduleNode runs one grant round.  Every non-empty input requests
// the output port its head message is routed towards; every idle
// output that drew requests grants one of them uniformly at random,
// and the winner's head message goes out.  Inputs appear in at most
// one request and outputs issue at most one grant, so the result is a
// valid matching by construction.
func (fs *FIFOScheduler) ScheduleNode(t int, node Node) {
	tag := fs.tag(node)
	rng := fs.randomStream()

	// output port -> inputs whose head is bound through it
	requests := CreateWeightedMultiMap[Node, Node]()
	for _, from := range tag.order {
		head := tag.queues[from][0]
		output := fs.NextHop(node, head)
		requests.Put(output, from, 1.0)
	}

	for _, output := range requests.Keys() {
		if !node.core().isIdle(output) {
			continue
		}
		granted, ok := requests.PickRandom(output, rng)
		if !ok {
			continue
		}
		msg := tag.pop(granted)
		node.core().transmitToNode(t, output, msg)
	}
}
