package main

import "github.com/burrowscan/burrow/cmd"

func main() {
	cmd.Execute()
}
