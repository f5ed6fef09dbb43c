package main

import (
	"os"

	"github.com/grovetools/launcher/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
