package main

import (
	"quotecrawl/cmd/quotecrawl/cmd"
)

func main() {
	cmd.Execute()
}
