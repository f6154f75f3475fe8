package main

import "seatrush/internal/cli"

func main() {
	cli.Execute()
}
