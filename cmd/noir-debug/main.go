package main

import (
	"os"

	"github.com/manastech/noir/cmd/noir-debug/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
