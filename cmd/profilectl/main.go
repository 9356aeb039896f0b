package main

import "profilereg/internal/cli"

func main() {
	cli.Execute()
}
