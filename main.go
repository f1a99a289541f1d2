package main

import "github.com/nextlevelbuilder/browserbot/cmd"

func main() {
	cmd.Execute()
}
