package main

import "metajuke/cmd"

func main() {
	cmd.Execute()
}
