// Command attrition trains, scores and explains the employee attrition model,
// and serves the retention dashboard API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
