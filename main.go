package main

import "rookpkg/cmd"

func main() {
	cmd.Execute()
}
