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

// Package wordfreq counts word frequencies in text using a cuckoo.Map.
package wordfreq

import (
	"bufio"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// isWordRune reports whether r can appear inside a word. Apostrophes and
// underscores are kept so that "don't" and "snake_case" are single words.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '_'
}

// scanWords is a bufio.SplitFunc that returns runs of word runes.
func scanWords(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		if !atEOF && !utf8.FullRune(data[start:]) {
			return start, nil, nil
		}
		r, width := utf8.DecodeRune(data[start:])
		if isWordRune(r) {
			break
		}
		start += width
	}
	for i := start; i < len(data); {
		if !atEOF && !utf8.FullRune(data[i:]) {
			return start, nil, nil
		}
		r, width := utf8.DecodeRune(data[i:])
		if !isWordRune(r) {
			return i + width, data[start:i], nil
		}
		i += width
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return start, nil, nil
}

// Normalize lower-cases word and trims leading and trailing apostrophes. It
// returns "" if nothing is left.
func Normalize(word string) string {
	return strings.Trim(strings.ToLower(word), "'")
}

// Tokenize calls yield for each normalized word read from r, skipping words
// that normalize to "". If yield returns false, tokenizing stops.
func Tokenize(r io.Reader, yield func(word string) bool) error {
	s := bufio.NewScanner(r)
	s.Split(scanWords)
	for s.Scan() {
		word := Normalize(s.Text())
		if word == "" {
			continue
		}
		if !yield(word) {
			return nil
		}
	}
	return s.Err()
}
