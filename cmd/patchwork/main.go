package main

import "github.com/geostack/patchwork/internal/cli"

func main() {
	cli.Execute()
}
