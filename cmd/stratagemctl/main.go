package main

import "stratagem-ai/internal/cli"

func main() {
	cli.Execute()
}
