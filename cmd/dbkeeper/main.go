package main

import "github.com/semmidev/dbkeeper/cmd/dbkeeper/commands"

func main() {
	commands.Execute()
}
