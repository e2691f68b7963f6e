package main

import "github.com/papapumpkin/mergetrain/cmd"

func main() {
	cmd.Execute()
}
