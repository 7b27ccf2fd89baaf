package main

import "github.com/ppiankov/fsgate/internal/cli"

func main() {
	cli.Execute()
}
