package main

import "github.com/bryanchriswhite/FocusTracker/cmd/focustracker/commands"

func main() {
	commands.Execute()
}
