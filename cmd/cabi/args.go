package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-canon/types"
)

func newArgsCmd(a *app) *cobra.Command {
	var codec codecFlags
	cmd := &cobra.Command{
		Use:   "args <function> [values]",
		Short: "lower a function's arguments the way a caller would",
		Long: `Args lowers one YAML or JSON value per parameter for a call to function and
prints the core arguments, the spilled parameter area and the return area.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := a.load(true)
			if err != nil {
				return err
			}
			f, ok := i.Func(args[0])
			if !ok {
				return fmt.Errorf("no function %q in %s", args[0], i.Name)
			}
			vals, err := parseArgs(f, args[1:])
			if err != nil {
				return err
			}
			c, err := lowerCall(f, vals, codec.options())
			if err != nil {
				return err
			}
			a.printSig(f)
			a.printCall(c)
			return nil
		},
	}
	codec.register(cmd)
	return cmd
}

func parseArgs(f *types.FuncType, srcs []string) ([]any, error) {
	if len(srcs) != len(f.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", f.Name, len(f.Params), len(srcs))
	}
	vals := make([]any, len(srcs))
	for i, src := range srcs {
		v, err := parseValue(src, f.Params[i].Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Params[i].Name, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func (a *app) printCall(c *call) {
	p := a.out
	p.printf("  args   %s\n", p.paint(resultStyle, slotsString(c.flat)))
	labels := make(map[uint32]string)
	if c.sig.ParamsIndirect {
		labels[uint32(c.flat[0])] = "params"
	}
	if c.sig.ResultIndirect {
		labels[c.retptr] = "retptr"
	}
	a.printBlocks(c.mem, c.blocks, labels)
}
