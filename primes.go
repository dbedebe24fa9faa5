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

import "fmt"

// defaultPrimes are the legal table sizes. Each is roughly double its
// predecessor.
var defaultPrimes = []int{
	7, 11, 19, 41, 79, 163, 317, 641,
	1279, 2557, 5119, 10243, 20479,
	40961, 81919, 163841, 327673,
}

func validatePrimes(primes []int) error {
	if len(primes) == 0 {
		return fmt.Errorf("cuckoo: empty capacity sequence")
	}
	if primes[0] <= 0 {
		return fmt.Errorf("cuckoo: capacity %d must be positive", primes[0])
	}
	for i := 1; i < len(primes); i++ {
		if primes[i] <= primes[i-1] {
			return fmt.Errorf("cuckoo: capacity sequence not ascending at %d: %d <= %d",
				i, primes[i], primes[i-1])
		}
	}
	return nil
}
