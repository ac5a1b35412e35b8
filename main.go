package main

import "github.com/saverx/saverx/cmd"

func main() {
	cmd.Execute()
}
