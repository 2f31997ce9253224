package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sokinpui/editstream"
)

func main() {
	if err := editstream.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var detailed *editstream.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "%s\n", detailed.Stack)
		}
		os.Exit(1)
	}
}
