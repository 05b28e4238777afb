package main

import "forge/internal/adapter/cli"

func main() {
	cli.Execute()
}
