// pivoice is a push-to-talk voice assistant for a Raspberry Pi with a slide
// switch, a USB microphone and a 16x2 I2C character LCD.
package main

import (
	"context"
	"fmt"
	"os"
)

// Version information set by ldflags during build
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
