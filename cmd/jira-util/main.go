package main

import "github.com/goblinsan/jira-util/cmd/jira-util/commands"

func main() {
	commands.Execute()
}
