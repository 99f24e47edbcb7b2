package main

import "nathanbeddoewebdev/linops/cmd"

func main() {
	cmd.Execute()
}
