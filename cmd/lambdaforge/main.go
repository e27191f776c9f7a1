package main

import "github.com/lambdaforge/lambdaforge/cli"

func main() {
	cli.Execute()
}
