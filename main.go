package main

import "genesis/cmd"

func main() {
	cmd.Execute()
}
