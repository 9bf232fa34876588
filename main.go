package main

import "lingo-core/cmd"

func main() {
	cmd.Run()
}
