// Command spectrectl drives the tracking agent from scripted page sessions
// and reads heatmaps back from a collector.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
