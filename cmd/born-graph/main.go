// Package main provides born-graph, a tool that builds layer programs from
// model descriptions and prints them.
package main

import (
	"context"

	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(NewCLI().ExecuteContext(context.Background()))
}
