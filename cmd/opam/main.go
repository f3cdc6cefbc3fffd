package main

import "github.com/RalfJung/opam/internal/cli"

func main() {
	cli.Execute()
}
