// Package main is locationctl, which sends START and STOP commands to a
// running LocationAgent.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
