package main

import (
	"os"

	"github.com/jetstack/sealx/cmd"
)

func main() {
	if os.Getenv("SEALX_ENABLE_COVERAGE_SERVER") == "true" {
		startCoverageServer()
	}

	cmd.Execute()
}
