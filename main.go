package main

import (
	"github.com/xkilldash9x/tradewire/cmd"
)

// main is the entry point for the tradewire CLI.
func main() {
	cmd.Execute()
}
