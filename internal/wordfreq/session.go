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
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Session answers frequency queries read line by line from in. A line is a
// word to look up, or a word prefixed with '-' to delete. A blank line or
// the end of in ends the session.
func Session(c *Counter, in io.Reader, out io.Writer) error {
	s := bufio.NewScanner(in)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			break
		}

		var err error
		if len(line) > 1 && line[0] == '-' {
			word := Normalize(line[1:])
			if c.Remove(word) {
				_, err = fmt.Fprintf(out, "%q has been deleted.\n", word)
			} else {
				_, err = fmt.Fprintf(out, "%q does not appear. Cannot delete.\n", word)
			}
		} else {
			word := Normalize(line)
			if n, ok := c.Count(word); ok {
				_, err = fmt.Fprintf(out, "%q appears %d times.\n", word, n)
			} else {
				_, err = fmt.Fprintf(out, "%q does not appear.\n", word)
			}
		}
		if err != nil {
			return fmt.Errorf("writing answer: %w", err)
		}
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("reading query: %w", err)
	}
	return nil
}
