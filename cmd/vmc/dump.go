package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vmc/internal/bytecode"
	"vmc/internal/engine"
	"vmc/internal/irfile"
	"vmc/internal/lower"
)

var dumpTarget string

func init() {
	dumpCmd.Flags().StringVar(&dumpTarget, "target", "llvm", "backend target string used to resolve primitive calls")
}

var dumpCmd = &cobra.Command{
	Use:   "dump <module.vmir>",
	Short: "Compile a module and print its disassembled bytecode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := engine.ParseTarget(dumpTarget)
		if err != nil {
			return err
		}

		module, ti, err := irfile.Load(args[0])
		if err != nil {
			return fmt.Errorf("dump %s: %w", args[0], err)
		}

		result, err := lower.Compile(module, ti, lower.Options{
			Target: target,
			Engine: engine.StubEngine{},
		})
		if err != nil {
			return fmt.Errorf("dump %s: %w", args[0], err)
		}

		fmt.Fprint(cmd.OutOrStdout(), bytecode.Disassemble(result.Program))
		return nil
	},
}
