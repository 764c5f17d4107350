package main

import (
	"context"
	"fmt"
	"os"

	"github.com/peco/outstream"
	"github.com/peco/outstream/internal/util"
)

func main() {
	var st int
	defer func() { os.Exit(st) }()

	cli := outstream.NewCLI()
	if err := cli.Run(context.Background(), os.Args[1:]); err != nil {
		if util.IsIgnorableError(err) {
			return
		}
		st, _ = util.GetExitStatus(err)
		fmt.Fprintf(os.Stderr, "outstream: %s\n", err)
	}
}
