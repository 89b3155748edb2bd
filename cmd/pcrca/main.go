package main

import (
	_ "go.uber.org/automaxprocs"

	"pc-rca/cmd/pcrca/cmd"
)

func main() {
	cmd.Execute()
}
