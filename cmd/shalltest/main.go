package main

import "github.com/LeJamon/shalltest/internal/cli"

func main() {
	cli.Execute()
}
