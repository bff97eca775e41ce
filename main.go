// Package main provides the entry point for FTBSim.
// FTBSim is a cycle-accurate branch-target-buffer simulator.
//
// For the full CLI, use: go run ./cmd/ftbsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("FTBSim - Branch Target Buffer Simulator")
	fmt.Println("")
	fmt.Println("Usage: ftbsim [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -cycles    Number of cycles to simulate")
	fmt.Println("  -blocks    Number of fetch blocks in the synthetic program")
	fmt.Println("  -seed      Seed for the synthetic program")
	fmt.Println("  -config    Path to FTB configuration JSON file")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/ftbsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/ftbsim' instead.")
	}
}
