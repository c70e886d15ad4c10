// Command xorbench builds each filter kind at a range of key counts and
// prints a comparison table: construction time, lookup time, observed
// false-positive rate, and memory footprint.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/approxsets/xorfilter"
)

var numTrials int

func main() {
	root := &cobra.Command{
		Use:   "xorbench",
		Short: "Compare xor/fuse/binary-fuse filter construction and lookup cost",
		RunE:  run,
	}
	root.Flags().IntVar(&numTrials, "num-trials", 100_000_000, "number of negative lookups to sample for the false positive rate")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type result struct {
	name        string
	numKeys     int
	populate    time.Duration
	lookup      time.Duration
	fpp         float64
	bitsPerKey  float64
	filterBytes int
}

// kind pairs a filter's display name with the constructor that builds it,
// expressed through xorfilter.Filter so bench doesn't need a variant per
// concrete type.
type kind struct {
	name    string
	minKeys int
	build   func(keys []uint64) (xorfilter.Filter, error)
}

var kinds = []kind{
	{name: "Xor8", build: func(keys []uint64) (xorfilter.Filter, error) {
		return xorfilter.PopulateXorFromSlice[uint8](keys, 8)
	}},
	{name: "Fuse8", minKeys: 100_000, build: func(keys []uint64) (xorfilter.Filter, error) {
		return xorfilter.PopulateFuse8FromSlice(keys)
	}},
	{name: "BinaryFuse8", build: func(keys []uint64) (xorfilter.Filter, error) {
		return xorfilter.PopulateBinaryFuse8FromSlice(keys)
	}},
}

func run(cmd *cobra.Command, args []string) error {
	sizes := []int{1_000, 100_000, 1_000_000}

	var results []result
	for _, n := range sizes {
		keys := make([]uint64, n)
		for i := range keys {
			keys[i] = rand.Uint64()
		}

		for _, k := range kinds {
			results = append(results, bench(k, keys))
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"filter", "keys", "populate", "lookup/op", "fpp %", "bits/entry", "bytes"})
	for _, r := range results {
		t.AppendRow(table.Row{
			r.name, r.numKeys, r.populate, r.lookup,
			fmt.Sprintf("%.4f", r.fpp), fmt.Sprintf("%.2f", r.bitsPerKey), r.filterBytes,
		})
	}
	t.SetStyle(table.StyleLight)
	t.RenderMarkdown()
	return nil
}

func measureFPP(contains func(uint64) bool) float64 {
	matches := 0
	for i := 0; i < numTrials; i++ {
		if contains(rand.Uint64()) {
			matches++
		}
	}
	return float64(matches) * 100.0 / float64(numTrials)
}

// bench runs construction, lookup timing, and false-positive sampling
// against a single xorfilter.Filter, regardless of which concrete filter
// kind built it.
func bench(k kind, keys []uint64) result {
	if len(keys) < k.minKeys {
		// Below the filter's documented operating range, construction is
		// unreliable; skip rather than report a misleading failure.
		return result{name: fmt.Sprintf("%s (skipped, n<%d)", k.name, k.minKeys), numKeys: len(keys)}
	}

	start := time.Now()
	filter, err := k.build(keys)
	populate := time.Since(start)
	if err != nil {
		return result{name: k.name, numKeys: len(keys)}
	}
	defer filter.Close()

	lookupStart := time.Now()
	for _, key := range keys {
		filter.Contains(key)
	}
	lookup := time.Since(lookupStart) / time.Duration(max(len(keys), 1))

	return result{
		name:        k.name,
		numKeys:     len(keys),
		populate:    populate,
		lookup:      lookup,
		fpp:         measureFPP(filter.Contains),
		bitsPerKey:  float64(filter.SizeInBytes()) * 8.0 / float64(max(len(keys), 1)),
		filterBytes: filter.SizeInBytes(),
	}
}
