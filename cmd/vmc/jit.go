package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vmc/internal/codegen/native"
)

var (
	jitTarget string
	jitSymbol string
)

func init() {
	jitCmd.Flags().StringVar(&jitTarget, "target", "", "ignored: the target is always read from <artifact> (its tvm_target comment, else its target triple)")
	jitCmd.Flags().StringVar(&jitSymbol, "call", "", "symbol to invoke after loading; defaults to the module entry point")
}

var jitCmd = &cobra.Command{
	Use:   "jit <artifact.ll>",
	Short: "Load a packaged native module and invoke a kernel in-process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mod, err := native.LoadIR(args[0])
		if err != nil {
			return fmt.Errorf("jit %s: %w", args[0], err)
		}

		sysHandle, err := mod.GetFunction("is_system_module")
		if err != nil {
			return err
		}
		isSystem, err := sysHandle.Bool()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "is_system_module: %v\n", isSystem)

		symbol := jitSymbol
		if symbol == "" {
			symbol = "tvm_module_main"
		}
		handle, err := mod.GetFunction(symbol)
		if err != nil {
			return err
		}
		result, err := handle.Call()
		if err != nil {
			return fmt.Errorf("jit %s: calling %q: %w", args[0], symbol, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s() -> %d\n", symbol, result)
		return nil
	},
}
