package main

import "github.com/bz888/nebula/cmd"

func main() {
	cmd.Execute()
}
