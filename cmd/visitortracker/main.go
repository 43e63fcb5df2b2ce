package main

import "visitor-tracker/internal/cli"

func main() {
	cli.Execute()
}
