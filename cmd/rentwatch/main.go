package main

import (
	"os"

	"github.com/FranksOps/rentwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
