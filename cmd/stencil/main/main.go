package main

import (
	"fmt"
	"os"

	"github.com/TheBestAstroNOT/stencil/internal/cli"
	"github.com/TheBestAstroNOT/stencil/pkg/style"
)

func main() {
	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		renderer := style.NewTerminalRenderer(style.DetectFormat(os.Stderr))
		fmt.Fprintln(os.Stderr, renderer.RenderError(err))
		os.Exit(1)
	}
}
