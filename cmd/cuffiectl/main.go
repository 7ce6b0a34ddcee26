package main

import (
	"os"

	"cuffie-gateway/cmd/cuffiectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
