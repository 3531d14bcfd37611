package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vmc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "vmc",
	Short:        "Tensor VM bytecode compiler and native codegen toolchain",
	Long:         `vmc lowers a functional tensor IR into register-based VM bytecode and packages per-operator kernels into loadable native artifacts.`,
	SilenceUsage: true,
}

var colorMode string

func main() {
	rootCmd.Version = version.Version
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(jitCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "accepted but has no effect; no command reads it")

	if err := rootCmd.Execute(); err != nil {
		// Every fatal condition this toolchain raises — pass-pipeline
		// rejections, lowering errors, bytecode validation failures, a
		// JIT arch/data-layout mismatch — surfaces here as an ordinary
		// wrapped error rather than a panic, so this is the one place
		// that needs to color it.
		printFatal(err)
		os.Exit(1)
	}
}

func printFatal(err error) {
	switch colorMode {
	case "off":
		fmt.Fprintln(os.Stderr, "error:", err)
	case "on":
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
	default:
		if isTerminal(os.Stderr) {
			fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
