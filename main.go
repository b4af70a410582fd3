package main

import (
	"github.com/ColonelBlimp/cwblocks/cmd"
	"github.com/ColonelBlimp/cwblocks/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
