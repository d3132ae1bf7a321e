package main

import "github.com/nextlevelbuilder/dmbot/cmd"

func main() {
	cmd.Execute()
}
