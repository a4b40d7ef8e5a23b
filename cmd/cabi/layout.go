package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-canon/types"
)

func newLayoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layout [types]",
		Short: "print memory layouts",
		Long: `Layout prints size, alignment, flat slots and member offsets of the named
types of the interface, or of the given type expressions, e.g.

	cabi layout -f fs.yaml entry 'list<tuple<u8, string>>'
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := a.load(len(args) == 0)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				for _, nt := range i.Types() {
					a.printLayout(nt.Name, nt.Type)
				}
				return nil
			}
			for _, expr := range args {
				t, err := types.ParseType(expr, i)
				if err != nil {
					return err
				}
				a.printLayout(expr, t)
			}
			return nil
		},
	}
}

func (a *app) printLayout(name string, t types.Type) {
	p := a.out
	p.printf("%s  %s\n", p.paint(funcStyle, name), p.paint(typeStyle, t.Kind().String()))
	p.printf("  size   %d\n", t.Size())
	p.printf("  align  %d\n", t.Align())
	p.printf("  flat   %s\n", flatString(t.Flat()))
	for _, m := range memberLayout(t) {
		p.printf("  @%s\n", m)
	}
}
