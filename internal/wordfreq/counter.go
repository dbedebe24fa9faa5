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

package wordfreq

import (
	"fmt"
	"io"
	"sort"

	"github.com/cockroachdb/cuckoo"
	"github.com/go-logr/logr"
)

// Hashes are the hash functions a Counter can be configured with, by name.
var Hashes = map[string]cuckoo.HashFunc[string]{
	"maphash": cuckoo.MapHash[string],
	"murmur3": cuckoo.Murmur3[string],
	"metro":   cuckoo.Metro[string],
	"xxhash":  cuckoo.XXHash[string],
}

// HashNames returns the names in Hashes, sorted.
func HashNames() []string {
	names := make([]string, 0, len(Hashes))
	for name := range Hashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Counter maps words to the number of times they were seen.
type Counter struct {
	words  *cuckoo.Map[string, int]
	logger logr.Logger
}

// NewCounter returns an empty Counter using the named hash function. An
// empty name selects maphash.
func NewCounter(hashName string, logger logr.Logger) (*Counter, error) {
	if hashName == "" {
		hashName = "maphash"
	}
	hash, ok := Hashes[hashName]
	if !ok {
		return nil, fmt.Errorf("unknown hash %q, expected one of %v", hashName, HashNames())
	}
	return &Counter{
		words: cuckoo.New[string, int](
			cuckoo.WithHash[string, int](hash),
			cuckoo.WithLogger[string, int](logger.WithName("cuckoo")),
		),
		logger: logger,
	}, nil
}

// Add increments the count of word after normalizing it. Words that
// normalize to "" are ignored.
func (c *Counter) Add(word string) error {
	word = Normalize(word)
	if word == "" {
		return nil
	}
	n, _ := c.words.Get(word)
	if err := c.words.Put(word, n+1); err != nil {
		return fmt.Errorf("counting %q: %w", word, err)
	}
	return nil
}

// Load counts every word read from r.
func (c *Counter) Load(r io.Reader) error {
	var total int
	var addErr error
	err := Tokenize(r, func(word string) bool {
		if addErr = c.Add(word); addErr != nil {
			return false
		}
		total++
		return true
	})
	if err != nil {
		return fmt.Errorf("reading words: %w", err)
	}
	if addErr != nil {
		return addErr
	}
	c.logger.V(1).Info("loaded", "words", total, "distinct", c.words.Len(),
		"capacity", c.words.Capacity())
	return nil
}

// Count returns the number of times word was seen, and whether it was seen
// at all.
func (c *Counter) Count(word string) (int, bool) {
	return c.words.Get(Normalize(word))
}

// Remove forgets word, returning true if it had been seen.
func (c *Counter) Remove(word string) bool {
	return c.words.Delete(Normalize(word))
}

// Distinct returns the number of distinct words seen.
func (c *Counter) Distinct() int {
	return c.words.Len()
}

// Top returns up to n words with the highest counts, most frequent first.
// Ties are broken alphabetically.
func (c *Counter) Top(n int) []cuckoo.Entry[string, int] {
	entries := c.words.Dump()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Key < entries[j].Key
	})
	if n < len(entries) {
		entries = entries[:max(n, 0)]
	}
	return entries
}
