// Command semview manages semantic views stored in a DuckDB or PostgreSQL
// database and runs queries against them.
//
//	semview --config semview.yaml define orders @orders.json
//	semview --config semview.yaml query orders --dim region --metric revenue
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
