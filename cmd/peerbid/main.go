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
	err := node.RunClientMain(context.Background(), node.ClientConfig{
		Program: "peerbid",
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Args:    os.Args[1:],
		APIAddr: ":4470",
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
