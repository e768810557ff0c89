package main

import (
	"os"

	"github.com/hstefan/fotc/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
