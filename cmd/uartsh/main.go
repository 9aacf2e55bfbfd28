package main

import (
	"github.com/robotalks/uartdma/pkg/cli/sh"
	"github.com/robotalks/uartdma/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
