package main

import "crenews/internal/cli"

func main() {
	cli.Execute()
}
