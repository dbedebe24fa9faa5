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

package cuckoo

import (
	"encoding/binary"
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	"github.com/shivakar/metrohash"
	"github.com/twmb/murmur3"
)

const (
	primarySeed   uint64 = 0
	secondarySeed uint64 = 0x9e3779b97f4a7c15
	// secondarySalt mixes the table size into the secondary seed so that the
	// secondary index of a key changes whenever the map grows.
	secondarySalt uint64 = 486187739
)

// HashFunc computes a 64-bit hash of key mixed with seed. It must be
// deterministic: the same key and seed always produce the same hash.
type HashFunc[K comparable] func(key K, seed uint64) uint64

// mapHashSeed is fixed for the life of the process so that MapHash is a pure
// function of its arguments.
var mapHashSeed = maphash.MakeSeed()

// MapHash hashes any comparable key using hash/maphash. It is the default
// hash function of a Map. Keys are hashed by value following the rules of
// ==. A key whose dynamic type is not comparable causes a panic.
func MapHash[K comparable](key K, seed uint64) uint64 {
	var h maphash.Hash
	h.SetSeed(mapHashSeed)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	_, _ = h.Write(buf[:])
	maphash.WriteComparable(&h, key)
	return h.Sum64()
}

// Murmur3 hashes string keys with 64-bit MurmurHash3.
func Murmur3[K ~string](key K, seed uint64) uint64 {
	return murmur3.SeedSum64(seed, []byte(key))
}

// Metro hashes string keys with MetroHash64, using the seed as a prefix to
// the bytes being summed.
func Metro[K ~string](key K, seed uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	h := metrohash.NewMetroHash64()
	h.Write(buf[:])
	h.Write([]byte(key))
	return h.Sum64()
}

// XXHash hashes string keys with XXH64, using the seed as a prefix to the
// bytes being summed.
func XXHash[K ~string](key K, seed uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(string(key))
	return d.Sum64()
}

// h1 returns the primary slot index of key for tables of the given size.
func (m *Map[K, V]) h1(key K, capacity int) int {
	return int(m.hash(key, primarySeed) % uint64(capacity))
}

// h2 returns the secondary slot index of key for tables of the given size. A
// nil interface key always maps to slot 0.
func (m *Map[K, V]) h2(key K, capacity int) int {
	if any(key) == nil {
		return 0
	}
	seed := secondarySeed ^ (uint64(capacity) * secondarySalt)
	return int(m.hash(key, seed) % uint64(capacity))
}
