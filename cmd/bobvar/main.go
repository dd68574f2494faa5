// Command bobvar draws random variates for branched polymer ensembles.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xtding233/bob-variates/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "bobvar:", err)
		os.Exit(1)
	}
}
