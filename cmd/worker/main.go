// Command worker runs the goalforge background worker: the AI job,
// notification and maintenance queue consumers, the maintenance scheduler
// and a small HTTP listener for health checks and metrics. Its subcommands
// also cover schema migrations and operating the queues by hand.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
