package main

import "github.com/schmug/scubascore/internal/cli"

func main() {
	cli.Execute()
}
