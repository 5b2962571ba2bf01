package main

import "obraflow/cmd/cli"

func main() {
	cli.Execute()
}
