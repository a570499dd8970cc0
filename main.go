package main

import "github.com/kiesman99/gridsheet/cmd"

func main() {
	cmd.Execute()
}
