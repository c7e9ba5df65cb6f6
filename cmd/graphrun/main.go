// Command graphrun is a CLI wrapper around the graph execution engine:
// invoke a graph, resume an interrupted thread, and inspect checkpoint
// state and history.
package main

import (
	"os"

	"github.com/ardenflow/graphrun/cmd/graphrun/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
