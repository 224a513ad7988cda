package main

import "github.com/marshallshelly/gravel/cmd/gravel/commands"

func main() {
	commands.Execute()
}
