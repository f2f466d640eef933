package main

import (
	"github.com/panoflat/panoflat/cmd/panoflat/commands"
)

func main() {
	commands.Execute()
}
