package main

import "github.com/nextlevelbuilder/openplatform/cmd"

func main() {
	cmd.Execute()
}
