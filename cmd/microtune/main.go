// Command microtune runs a closed-loop resource tuning benchmark for
// a microservice deployment: it sweeps a grid of CPU/memory/replica
// settings under synthetic load, reshapes the recorded metrics into a
// training table, fits regression models over it, and recommends the
// best neighboring parameter point for the current state.
//
// Usage:
//
//	microtune seed                      # fetch the browse corpus
//	microtune benchmark                 # run the parameter sweep
//	microtune filter --run <id>         # build the filtered table
//	microtune train --run <id> --family svr
//	microtune advise --window 2
//	microtune runs                      # list recorded runs
//	microtune serve                     # status server only
//
// Configuration comes from flags, MICROTUNE_* environment variables,
// or a microtune.yaml config file.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
