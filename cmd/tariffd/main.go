package main

import (
	"tariff-optimizer/internal/cli"
)

func main() {
	cli.Execute()
}
