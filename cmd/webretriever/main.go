// Command webretriever is the CLI entrypoint: it does nothing but hand
// off to internal/cli, which owns flag parsing, config loading, and the
// engine run.
package main

import (
	cmd "github.com/rohmanhakim/webretriever/internal/cli"
)

func main() {
	cmd.Execute()
}
