package main

import (
	"fmt"
	"os"

	"github.com/tphakala/navpreview/cmd"
	"github.com/tphakala/navpreview/internal/conf"
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	err = cmd.RootCommand(settings).Execute()
	cmd.CloseLogger()
	if err != nil {
		return 1
	}
	return 0
}
