package main

import "github.com/mvp-joe/declindex/internal/cli"

func main() {
	cli.Execute()
}
