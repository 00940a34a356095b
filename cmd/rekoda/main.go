package main

import "rekoda/internal/cli"

func main() {
	cli.Execute()
}
