package main

import "orionjets/internal/cli"

func main() {
	cli.Execute()
}
