package main

import (
	"github.com/rdalcega/docdex/internal/cli"
)

func main() {
	cli.Execute()
}
