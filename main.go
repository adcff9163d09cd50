package main

import "github.com/mediascout/mediascout/cmd"

func main() {
	cmd.Execute()
}
