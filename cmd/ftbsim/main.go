// Package main provides the entry point for FTBSim.
// FTBSim is a cycle-accurate branch-target-buffer simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/ftbsim/timing/fetch"
	"github.com/sarchlab/ftbsim/timing/ftb"
)

var (
	cycles     = flag.Int("cycles", 100000, "Number of cycles to simulate")
	numBlocks  = flag.Int("blocks", 256, "Number of fetch blocks in the synthetic program")
	seed       = flag.Int64("seed", 1, "Seed for the synthetic program")
	configPath = flag.String("config", "", "Path to FTB configuration JSON file")
	verbose    = flag.Bool("v", false, "Verbose output")
)

const programBase = 0x10000

func main() {
	flag.Parse()

	config := fetch.DefaultConfig()
	if *configPath != "" {
		ftbConfig, err := ftb.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.FTB = ftbConfig
	}

	prog := fetch.NewSyntheticProgram(*numBlocks, *seed, programBase, config.FTB)

	unit := fetch.New(config, prog)
	unit.SetPC(programBase)

	if *verbose {
		fmt.Printf("FTB geometry: %d sets x %d ways, %d-bit tags\n",
			config.FTB.NumSets, config.FTB.NumWays, config.FTB.TagBits)
		fmt.Printf("Program: %d blocks, seed %d\n", *numBlocks, *seed)
	}

	unit.Run(*cycles)

	printResults(unit)
}

// printResults prints the simulation summary.
func printResults(unit *fetch.FetchUnit) {
	stats := unit.Stats()
	ftbStats := unit.FTB().Stats()
	dirStats := unit.Predictor().Stats()
	icacheStats := unit.ICache().Stats()

	fmt.Println("=== Fetch ===")
	fmt.Printf("Cycles:             %d\n", stats.Cycles)
	fmt.Printf("Blocks resolved:    %d\n", stats.Blocks)
	fmt.Printf("Cycles per block:   %.2f\n", stats.CyclesPerBlock())
	fmt.Printf("Stall cycles:       %d\n", stats.StallCycles)
	fmt.Printf("Target mispredicts: %d\n", stats.TargetMispredicts)

	fmt.Println("=== FTB ===")
	fmt.Printf("Lookups:            %d (%d deferred)\n", ftbStats.Lookups, ftbStats.LookupRejects)
	fmt.Printf("Hit rate:           %.2f%%\n", ftbStats.HitRate())
	fmt.Printf("Updates:            %d (%d first-seen, %d repeat)\n",
		ftbStats.Updates, ftbStats.UpdateNewAddr, ftbStats.UpdateRepeatAddr)

	fmt.Println("=== Direction predictor ===")
	fmt.Printf("Predictions:        %d\n", dirStats.Predictions)
	fmt.Printf("Accuracy:           %.2f%%\n", dirStats.Accuracy())

	if *verbose {
		fmt.Println("=== I-cache ===")
		fmt.Printf("Hits/misses:        %d/%d (%.2f%%)\n",
			icacheStats.Hits, icacheStats.Misses, icacheStats.HitRate())
	}
}
