package main

import "github.com/ferreirogomes/starnotary/cmd"

func main() {
	cmd.Execute()
}
