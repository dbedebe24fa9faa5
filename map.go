// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package cuckoo is a Go implementation of two-table cuckoo hashing as
// described in https://www.itu.dk/people/pagh/papers/cuckoo-jour.pdf. See
// also https://en.wikipedia.org/wiki/Cuckoo_hashing.
//
// # Cuckoo Hashing
//
// A cuckoo hash table keeps two tables of equal size and two hash functions.
// Every key has exactly two candidate slots: h1(key) in the primary table and
// h2(key) in the secondary table. Lookups and deletions therefore inspect at
// most two slots and are worst-case constant time.
//
// Insertion places the new entry in its primary slot. If that slot was
// occupied, the incumbent is evicted and moved to its secondary slot, which
// may evict another entry back to its primary slot, and so on. Eviction
// always alternates primary, secondary, primary, so the eviction chain for a
// given sequence of keys is fully deterministic. Below, put(x) lands on
// h1(x)=1, evicting a to h2(a)=2, which evicts b to the empty h1(b)=0:
//
//	 primary  secondary          primary  secondary
//	+---+    +---+              +---+    +---+
//	|   |    |   |              | b |    |   |
//	+---+    +---+              +---+    +---+
//	| a |    |   |     ==>      | x |    |   |
//	+---+    +---+              +---+    +---+
//	|   |    | b |              |   |    | a |
//	+---+    +---+              +---+    +---+
//
// An eviction chain is bounded by a displacement budget equal to the
// smallest table size. Exhausting the budget is taken to mean the chain is a
// cycle, which can only be resolved by growing the tables.
//
// # Growth
//
// The tables grow along a fixed ascending sequence of primes and never shrink.
// Before a new key is inserted, the map grows if storing it would push the
// load factor used/(2*capacity) above 0.49. Growth allocates two new tables
// at the next prime and reinserts every entry with the same bounded
// displacement. If reinsertion itself runs into a cycle the attempt is
// abandoned and the next prime is tried. The old tables stay authoritative
// until reinsertion completes, so an abandoned attempt never loses entries.
//
// Once the last prime is reached growth is no longer possible. An insertion
// that cannot find a slot at the maximum size is undone and Put returns
// ErrCapacityExhausted, leaving the map exactly as it was.
package cuckoo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

const maxLoadFactor = 0.49

// ErrCapacityExhausted is returned by Put when a new key cannot be stored
// because the map is at its maximum size. The map is left unchanged.
var ErrCapacityExhausted = errors.New("cuckoo: capacity exhausted")

// Slot holds a key and value.
type Slot[K comparable, V any] struct {
	key   K
	value V
	// full distinguishes an occupied slot from an empty one. The zero K is a
	// legal key.
	full bool
}

// Entry is a key and value returned by Map.Dump.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// placement is the outcome of a bounded eviction chain.
type placement uint8

const (
	// placed means the chain ended in an empty slot.
	placed placement = iota
	// cycleDetected means the displacement budget was exhausted and one entry
	// was left homeless.
	cycleDetected
)

func (p placement) String() string {
	switch p {
	case placed:
		return "placed"
	case cycleDetected:
		return "cycle-detected"
	default:
		return fmt.Sprintf("placement(%d)", uint8(p))
	}
}

// displacement records one swap of an eviction chain so the chain can be
// unwound.
type displacement struct {
	secondary bool
	index     int
}

// table is the pair of slot arrays for one table size.
type table[K comparable, V any] struct {
	// primary is indexed by h1 and secondary by h2. Both are capacity in
	// length.
	primary   []Slot[K, V]
	secondary []Slot[K, V]
	// The size of each slot array. Always an entry of Map.primes.
	capacity int
	// The number of full slots across both arrays.
	used int
}

// Map is an unordered map from keys to values with Put, Get, Delete, and All
// operations, implemented with two-table cuckoo hashing. By default a
// Map[K,V] hashes keys with hash/maphash, though a different hash function
// can be specified using the WithHash option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	hash HashFunc[K]
	// The allocator to use for the slot arrays.
	allocator Allocator[K, V]
	logger    logr.Logger
	// primes is the sequence of legal table sizes and primeIdx selects the
	// current one.
	primes   []int
	primeIdx int
	// maxDisplacements bounds the number of primary/secondary rounds of an
	// eviction chain.
	maxDisplacements int
	table            table[K, V]
	// path is the undo log of the eviction chain run by the current Put. It
	// is retained between calls to avoid reallocating it.
	path []displacement
}

// New constructs a new empty Map whose tables are sized to the first entry
// of the capacity sequence. New panics if the sequence supplied with
// WithPrimes is empty or not strictly ascending.
func New[K comparable, V any](options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:      MapHash[K],
		allocator: defaultAllocator[K, V]{},
		logger:    logr.Discard(),
		primes:    defaultPrimes,
	}

	for _, op := range options {
		op.apply(m)
	}
	if err := validatePrimes(m.primes); err != nil {
		panic(err)
	}

	m.maxDisplacements = m.primes[0]
	m.path = make([]displacement, 0, 2*m.maxDisplacements)
	m.table = m.newTable(m.primes[0])
	m.checkInvariants()
	return m
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.allocator != nil {
		m.release(&m.table)
	}
	m.table = table[K, V]{}
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. Updating an existing key always
// succeeds. Inserting a new key may grow the map and returns
// ErrCapacityExhausted if the map is at its maximum size and has no room for
// it, in which case the map is unchanged.
//
// Growth keeps the load factor at or below 0.49 unless every larger size in
// the capacity sequence cycles on reinsertion. The map then stays at its
// current size and the insert proceeds there, so the load factor may exceed
// 0.49 below the maximum size.
func (m *Map[K, V]) Put(key K, value V) error {
	if s := m.find(key); s != nil {
		s.value = value
		return nil
	}

	if err := m.ensureCapacity(); err != nil {
		return err
	}

	m.path = m.path[:0]
	homeless, res := m.place(&m.table, Slot[K, V]{key: key, value: value, full: true}, &m.path)
	if res == placed {
		m.checkInvariants()
		return nil
	}

	// The eviction chain cycled. Growth reinserts every entry, including the
	// one left homeless, at a larger size. Growth is bounded by the number of
	// remaining primes.
	if m.grow(&homeless) {
		m.checkInvariants()
		return nil
	}

	m.unwind(&m.table, homeless, m.path)
	m.logger.V(1).Info("insert refused", "capacity", m.table.capacity, "used", m.table.used)
	m.checkInvariants()
	return ErrCapacityExhausted
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if s := m.find(key); s != nil {
		return s.value, true
	}
	return value, false
}

// Has returns true if the map contains key.
func (m *Map[K, V]) Has(key K) bool {
	return m.find(key) != nil
}

// Delete deletes the entry corresponding to the specified key from the map,
// returning true if an entry was removed. It is a noop to delete a
// non-existent key.
func (m *Map[K, V]) Delete(key K) bool {
	s := m.find(key)
	if s == nil {
		return false
	}
	*s = Slot[K, V]{}
	m.table.used--
	m.checkInvariants()
	return true
}

// Clear deletes all entries from the map, retaining the current capacity.
func (m *Map[K, V]) Clear() {
	clear(m.table.primary)
	clear(m.table.secondary)
	m.table.used = 0
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, range stops the iteration. The map can be mutated
// during iteration, though there is no guarantee that the mutations will be
// visible to the iteration. No iteration order is guaranteed.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the slot arrays so that iteration remains valid if the map
	// grows during iteration.
	for _, slots := range [2][]Slot[K, V]{m.table.primary, m.table.secondary} {
		for i := range slots {
			if s := slots[i]; s.full {
				if !yield(s.key, s.value) {
					return
				}
			}
		}
	}
}

// Dump returns every entry in the map. It is intended for diagnostics and
// tests. No ordering is guaranteed.
func (m *Map[K, V]) Dump() []Entry[K, V] {
	entries := make([]Entry[K, V], 0, m.table.used)
	m.All(func(k K, v V) bool {
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
		return true
	})
	return entries
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.table.used
}

// IsEmpty returns true if the map contains no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.table.used == 0
}

// Capacity returns the current size of each of the two tables. The map can
// hold at most 2*Capacity() entries before growing.
func (m *Map[K, V]) Capacity() int {
	return m.table.capacity
}

// find returns the slot holding key, or nil if key is not present.
func (m *Map[K, V]) find(key K) *Slot[K, V] {
	t := &m.table
	if s := &t.primary[m.h1(key, t.capacity)]; s.full && s.key == key {
		return s
	}
	if s := &t.secondary[m.h2(key, t.capacity)]; s.full && s.key == key {
		return s
	}
	return nil
}

// loadFactor returns the load factor the map would have with n entries.
func (m *Map[K, V]) loadFactor(n int) float64 {
	return float64(n) / float64(2*m.table.capacity)
}

// ensureCapacity grows the map until storing one more entry keeps the load
// factor at or below maxLoadFactor, or until growth is no longer possible. It
// returns ErrCapacityExhausted if both tables are completely full.
func (m *Map[K, V]) ensureCapacity() error {
	for m.loadFactor(m.table.used+1) > maxLoadFactor {
		if !m.grow(nil) {
			break
		}
	}
	if m.table.used >= 2*m.table.capacity {
		m.logger.V(1).Info("tables full", "capacity", m.table.capacity, "used", m.table.used)
		return ErrCapacityExhausted
	}
	return nil
}

// place runs a bounded eviction chain for s in t. The chain alternates
// between the primary and secondary table, swapping the carried entry into
// its slot and carrying the evicted incumbent onward. If path is non-nil
// every swap is appended to it.
//
// place returns cycleDetected and the entry left homeless if the chain did
// not reach an empty slot within the displacement budget. In that case t.used
// is not incremented and the homeless entry is no longer stored in t.
func (m *Map[K, V]) place(
	t *table[K, V], s Slot[K, V], path *[]displacement,
) (Slot[K, V], placement) {
	for i := 0; i < m.maxDisplacements; i++ {
		j := m.h1(s.key, t.capacity)
		s, t.primary[j] = t.primary[j], s
		if path != nil {
			*path = append(*path, displacement{index: j})
		}
		if !s.full {
			t.used++
			return s, placed
		}

		j = m.h2(s.key, t.capacity)
		s, t.secondary[j] = t.secondary[j], s
		if path != nil {
			*path = append(*path, displacement{secondary: true, index: j})
		}
		if !s.full {
			t.used++
			return s, placed
		}
	}
	return s, cycleDetected
}

// unwind reverts the swaps recorded in path, restoring t to its state before
// the eviction chain that left s homeless. Each swap is its own inverse, so
// replaying the swaps in reverse order carries every entry back to where it
// was and leaves the original inserted entry in hand.
func (m *Map[K, V]) unwind(t *table[K, V], s Slot[K, V], path []displacement) {
	for i := len(path) - 1; i >= 0; i-- {
		d := path[i]
		slots := t.primary
		if d.secondary {
			slots = t.secondary
		}
		s, slots[d.index] = slots[d.index], s
	}
}

// grow moves the map to the next size in the capacity sequence at which
// every entry, plus extra if non-nil, can be placed without a cycle. Sizes
// at which reinsertion cycles are skipped. grow returns false, leaving the
// map untouched, if no larger size remains.
func (m *Map[K, V]) grow(extra *Slot[K, V]) bool {
	old := &m.table
	for idx := m.primeIdx + 1; idx < len(m.primes); idx++ {
		t := m.newTable(m.primes[idx])
		res := m.rehash(&t, old, extra)
		if res == placed {
			m.logger.V(1).Info("grew",
				"from", old.capacity, "to", t.capacity, "used", t.used)
			m.release(old)
			m.table = t
			m.primeIdx = idx
			return true
		}

		m.logger.V(2).Info("abandoned growth attempt",
			"capacity", t.capacity, "used", old.used, "result", res)
		m.release(&t)
	}
	m.logger.V(2).Info("cannot grow beyond maximum size", "capacity", old.capacity)
	return false
}

// rehash places every entry of old, and extra if non-nil, into t. It stops
// at the first entry that cannot be placed and reports cycleDetected.
func (m *Map[K, V]) rehash(t, old *table[K, V], extra *Slot[K, V]) placement {
	for _, slots := range [2][]Slot[K, V]{old.primary, old.secondary} {
		for i := range slots {
			if !slots[i].full {
				continue
			}
			if _, res := m.place(t, slots[i], nil); res != placed {
				return res
			}
		}
	}
	if extra != nil {
		if _, res := m.place(t, *extra, nil); res != placed {
			return res
		}
	}
	return placed
}

func (m *Map[K, V]) newTable(capacity int) table[K, V] {
	return table[K, V]{
		primary:   m.allocator.AllocSlots(capacity),
		secondary: m.allocator.AllocSlots(capacity),
		capacity:  capacity,
	}
}

func (m *Map[K, V]) release(t *table[K, V]) {
	if t.primary != nil {
		m.allocator.FreeSlots(t.primary)
	}
	if t.secondary != nil {
		m.allocator.FreeSlots(t.secondary)
	}
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		t := &m.table
		if t.capacity != m.primes[m.primeIdx] {
			panic(fmt.Sprintf("invariant failed: capacity %d is not primes[%d]=%d\n%s",
				t.capacity, m.primeIdx, m.primes[m.primeIdx], m.debugString()))
		}
		if len(t.primary) != t.capacity || len(t.secondary) != t.capacity {
			panic(fmt.Sprintf("invariant failed: slot arrays %d/%d, capacity %d\n%s",
				len(t.primary), len(t.secondary), t.capacity, m.debugString()))
		}

		// Every full slot must be at the index its table's hash function
		// assigns, and a key must not appear in both tables.
		var used int
		for i := range t.primary {
			s := &t.primary[i]
			if !s.full {
				continue
			}
			if j := m.h1(s.key, t.capacity); j != i {
				panic(fmt.Sprintf("invariant failed: primary(%d): %v belongs at %d\n%s",
					i, s.key, j, m.debugString()))
			}
			if o := &t.secondary[m.h2(s.key, t.capacity)]; o.full && o.key == s.key {
				panic(fmt.Sprintf("invariant failed: %v present in both tables\n%s",
					s.key, m.debugString()))
			}
			used++
		}
		for i := range t.secondary {
			s := &t.secondary[i]
			if !s.full {
				continue
			}
			if j := m.h2(s.key, t.capacity); j != i {
				panic(fmt.Sprintf("invariant failed: secondary(%d): %v belongs at %d\n%s",
					i, s.key, j, m.debugString()))
			}
			used++
		}

		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, t.used, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	t := &m.table
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  load=%.3f\n",
		t.capacity, t.used, m.loadFactor(t.used))
	for i := 0; i < t.capacity; i++ {
		fmt.Fprintf(&buf, "  %4d:", i)
		for _, s := range [2]*Slot[K, V]{&t.primary[i], &t.secondary[i]} {
			if s.full {
				fmt.Fprintf(&buf, "  %v=%v", s.key, s.value)
			} else {
				buf.WriteString("  empty")
			}
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
