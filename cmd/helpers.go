package cmd

import (
	"fmt"
	"runtime"

	"github.com/jetstack/sealx/pkg/version"
)

func printVersion(verbose bool) {
	fmt.Println("Sealx version: ", version.Version, runtime.GOOS+"/"+runtime.GOARCH)
	if verbose {
		fmt.Println("  Commit: ", version.Commit)
		fmt.Println("  Built:  ", version.BuildDate)
		fmt.Println("  Go:     ", runtime.Version())
	}
}
