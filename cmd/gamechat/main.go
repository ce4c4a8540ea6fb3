package main

import (
	"os"

	"gamechat/cmd/gamechat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
