// Command taskpilot is a TODO manager with an AI assistant.
package main

import "github.com/marcus/taskpilot/cmd/taskpilot/commands"

func main() {
	commands.Execute()
}
