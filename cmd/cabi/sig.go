package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-canon/types"
)

func newSigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sig [functions]",
		Short: "print flattened core signatures",
		Long: `Sig prints the core signature each function lowers to. Parameters spilled
to memory and results returned through a pointer are marked.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := a.load(true)
			if err != nil {
				return err
			}
			fs, err := funcs(i, args)
			if err != nil {
				return err
			}
			for _, f := range fs {
				a.printSig(f)
			}
			return nil
		},
	}
}

func (a *app) printSig(f *types.FuncType) {
	p := a.out
	sig := f.Flatten()
	p.printf("%s\n", p.paint(funcStyle, f.String()))
	p.printf("  core   %s\n", p.paint(typeStyle, sig.String()))
	if sig.ParamsIndirect {
		t := f.ParamTuple()
		p.printf("  params spilled to memory: %d bytes, align %d\n", t.Size(), t.Align())
	}
	if sig.ResultIndirect {
		p.printf("  result via return pointer: %d bytes, align %d\n", f.Result.Size(), f.Result.Align())
	}
}
