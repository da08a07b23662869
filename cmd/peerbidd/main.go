package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"peerbid/node"
)

func main() {
	err := node.RunMain(context.Background(), node.RunConfig{
		Program:   "peerbidd",
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Args:      os.Args[1:],
		APIAddr:   ":4460",
		DebugAddr: ":4461",
	})
	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case node.IsSignalError(err):
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
