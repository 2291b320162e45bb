package main

import (
	"fmt"
	"os"

	"github.com/dukerupert/invoicer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "invoicectl:", err)
		os.Exit(1)
	}
}
