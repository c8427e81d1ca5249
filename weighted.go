package xbar

// weighted.go holds the weighted collections the simulator leans on:
// a set whose members carry non-negative weights and support biased
// random sampling, and a two-level map whose inner sets are weighted.
// Decision structures, generator buckets, and the per-round
// request/grant bookkeeping of the matching policies all use them.

import (
	"fmt"

	"github.com/iti/rngstream"
	"golang.org/x/exp/slices"
)

// WeightedSet maps members to non-negative float weights and supports
// picking a member at random with probability proportional to its
// weight.  Members are iterated in insertion order so that a run with
// a fixed RNG seed is reproducible.
type WeightedSet[V comparable] struct {
	weights map[V]float64
	order   []V
	total   float64
}

// CreateWeightedSet is a constructor
func CreateWeightedSet[V comparable]() *WeightedSet[V] {
	ws := new(WeightedSet[V])
	ws.weights = make(map[V]float64)
	ws.order = make([]V, 0)
	ws.total = 0.0
	return ws
}

// Add puts v into the set with the given weight, replacing any weight
// it held before.  Negative weights are rejected.
func (ws *WeightedSet[V]) Add(v V, w float64) {
	if w < 0 {
		panic(fmt.Errorf("weight %f is negative", w))
	}
	prev, present := ws.weights[v]
	if !present {
		ws.order = append(ws.order, v)
	}
	ws.total += w - prev
	ws.weights[v] = w
}

// Remove takes v out of the set, subtracting its weight from the total
func (ws *WeightedSet[V]) Remove(v V) {
	w, present := ws.weights[v]
	if !present {
		return
	}
	ws.total -= w
	delete(ws.weights, v)
	idx := slices.Index(ws.order, v)
	ws.order = append(ws.order[:idx], ws.order[idx+1:]...)
}

// Contains reports whether v is a member of the set
func (ws *WeightedSet[V]) Contains(v V) bool {
	_, present := ws.weights[v]
	return present
}

// Len returns the number of members
func (ws *WeightedSet[V]) Len() int {
	return len(ws.weights)
}

// Weight returns the sum of the member weights, maintained
// incrementally so the call is constant time
func (ws *WeightedSet[V]) Weight() float64 {
	return ws.total
}

// WeightOf returns the weight of v, with members not in the set
// carrying weight zero
func (ws *WeightedSet[V]) WeightOf(v V) float64 {
	return ws.weights[v]
}

// Values returns the members in insertion order.  The returned slice
// is the set's own ordering and must not be modified by the caller.
func (ws *WeightedSet[V]) Values() []V {
	return ws.order
}

// Retain drops every member not present in keep
func (ws *WeightedSet[V]) Retain(keep map[V]bool) {
	dropped := []V{}
	for _, v := range ws.order {
		if !keep[v] {
			dropped = append(dropped, v)
		}
	}
	for _, v := range dropped {
		ws.Remove(v)
	}
}

// Clone returns an independent copy of the set
func (ws *WeightedSet[V]) Clone() *WeightedSet[V] {
	cp := CreateWeightedSet[V]()
	for _, v := range ws.order {
		cp.Add(v, ws.weights[v])
	}
	return cp
}

// PickRandom draws a member with probability proportional to its
// weight.  The draw maps a uniform variate r in [0,1) onto (0, total]
// through u = (1-r)*total, and walks the members accumulating weight
// until the running sum covers u.  The second return value is false
// when the set is empty or has no weight to sample from.
func (ws *WeightedSet[V]) PickRandom(rng *rngstream.RngStream) (V, bool) {
	var none V
	if len(ws.order) == 0 || ws.total <= 0.0 {
		return none, false
	}

	u := (1.0 - rng.RandU01()) * ws.total
	for _, v := range ws.order {
		w := ws.weights[v]
		if u <= w {
			return v, true
		}
		u -= w
	}
	// u lies in (0, total], so the walk must terminate inside the loop
	panic("total weight is not being tracked correctly")
}

// WeightedMultiMap maps keys to weighted sets of values.  The inner
// sets obey a "no empty shells" rule: removing the last value of a key
// removes the key itself, so the key set always equals the set of keys
// with at least one value.
type WeightedMultiMap[K comparable, V comparable] struct {
	sets  map[K]*WeightedSet[V]
	order []K
}

// CreateWeightedMultiMap is a constructor
func CreateWeightedMultiMap[K comparable, V comparable]() *WeightedMultiMap[K, V] {
	wm := new(WeightedMultiMap[K, V])
	wm.sets = make(map[K]*WeightedSet[V])
	wm.order = make([]K, 0)
	return wm
}

// Put inserts v under k with the given weight, creating the inner set
// on first use
func (wm *WeightedMultiMap[K, V]) Put(k K, v V, w float64) {
	set, present := wm.sets[k]
	if !present {
		set = CreateWeightedSet[V]()
		wm.sets[k] = set
		wm.order = append(wm.order, k)
	}
	set.Add(v, w)
}

// Get returns the inner set for k, or nil if k has no values.  The
// returned set is live; removals through it bypass the empty-shell
// bookkeeping, so callers that shrink it should go through Remove.
func (wm *WeightedMultiMap[K, V]) Get(k K) *WeightedSet[V] {
	return wm.sets[k]
}

// Keys returns the keys with at least one value, in insertion order
func (wm *WeightedMultiMap[K, V]) Keys() []K {
	return wm.order
}

// Len returns the number of keys with at least one value
func (wm *WeightedMultiMap[K, V]) Len() int {
	return len(wm.sets)
}

// Weight returns the total weight of the values under k
func (wm *WeightedMultiMap[K, V]) Weight(k K) float64 {
	set, present := wm.sets[k]
	if !present {
		return 0.0
	}
	return set.Weight()
}

// WeightOf returns the weight of v under k
func (wm *WeightedMultiMap[K, V]) WeightOf(k K, v V) float64 {
	set, present := wm.sets[k]
	if !present {
		return 0.0
	}
	return set.WeightOf(v)
}

// Remove drops v from the values of k, and drops k itself when its
// set becomes empty
func (wm *WeightedMultiMap[K, V]) Remove(k K, v V) {
	set, present := wm.sets[k]
	if !present {
		return
	}
	set.Remove(v)
	if set.Len() == 0 {
		wm.RemoveAll(k)
	}
}

// RemoveAll drops k and every value under it
func (wm *WeightedMultiMap[K, V]) RemoveAll(k K) {
	_, present := wm.sets[k]
	if !present {
		return
	}
	delete(wm.sets, k)
	idx := slices.Index(wm.order, k)
	wm.order = append(wm.order[:idx], wm.order[idx+1:]...)
}

// PickRandom draws a value of k with probability proportional to its
// weight, returning false if k has no values or no weight
func (wm *WeightedMultiMap[K, V]) PickRandom(k K, rng *rngstream.RngStream) (V, bool) {
	var none V
	set, present := wm.sets[k]
	if !present || set.Weight() <= 0.0 {
		return none, false
	}
	return set.PickRandom(rng)
}
