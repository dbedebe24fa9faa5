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

// wordfreq counts the words of a text file and answers frequency queries
// typed on stdin.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/cockroachdb/cuckoo/internal/wordfreq"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
)

var (
	hashName  string
	verbosity int
	top       int
)

func init() {
	rootCmd.Flags().StringVar(&hashName, "hash", "maphash",
		fmt.Sprintf("Hash function for the word table (%s)", strings.Join(wordfreq.HashNames(), ", ")))
	rootCmd.Flags().IntVarP(&verbosity, "verbosity", "v", 0,
		"Log verbosity: 0 for info, 1 for debug, 2 for trace")
	rootCmd.Flags().IntVar(&top, "top", 0, "Print the N most frequent words after loading")
}

var rootCmd = &cobra.Command{
	Use:   "wordfreq FILE",
	Short: "Count word frequencies in a text file",
	Long: "Loads FILE into a cuckoo hash table keyed by lower-cased word, prints the number " +
		"of distinct words, then reads words from stdin and prints how often each appears. " +
		"Prefix a word with '-' to delete it. An empty line exits.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0], cmd.InOrStdin(), cmd.OutOrStdout(), newLogger(verbosity))
	},
}

// newLogger returns a stdr logger with the given verbosity, clamped to the
// range [0, 2].
func newLogger(v int) logr.Logger {
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("wordfreq")
	if v > 2 || v < 0 {
		logger.Info("Invalid verbosity, setting logger to display info level messages only.", "verbosity", v)
		v = 0
	}
	stdr.SetVerbosity(v)
	return logger
}

func run(path string, in io.Reader, out io.Writer, logger logr.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	c, err := wordfreq.NewCounter(hashName, logger)
	if err != nil {
		return err
	}
	if err := c.Load(f); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	fmt.Fprintf(out, "This text contains %d distinct words.\n", c.Distinct())
	for _, e := range c.Top(top) {
		fmt.Fprintf(out, "%8d %s\n", e.Value, e.Key)
	}
	fmt.Fprintln(out, "Please enter a word to get its frequency, or hit enter to leave.")

	if err := wordfreq.Session(c, in, out); err != nil {
		return err
	}
	fmt.Fprintln(out, "Goodbye!")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wordfreq: %v\n", err)
		os.Exit(1)
	}
}
