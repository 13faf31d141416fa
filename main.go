package main

import (
	"fmt"
	"os"

	"github.com/zeu5/hospitalbot-rl/commands"
)

// main entry point to all the run modes
func main() {
	rootCommand := commands.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
