// Command oocana is the developer-facing CLI:
// `oocana run <flow>` drives one session to completion; `oocana cache
// clear` empties the local run-from-node cache.
package main

import (
	"fmt"
	"os"

	"github.com/oocana-go/oocana/cmd/oocana/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
