package main

import (
	"github.com/harborline/payguard/internal/cli"
)

func main() {
	cli.Execute()
}
