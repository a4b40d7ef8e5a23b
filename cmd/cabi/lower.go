package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-canon/transcoder"
	"github.com/wippyai/wasm-canon/types"
)

type codecFlags struct {
	utf16      bool
	strictBool bool
}

func (c *codecFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&c.utf16, "utf16", false, "store strings as UTF-16")
	cmd.Flags().BoolVar(&c.strictBool, "strict-bool", false, "reject bool values other than 0 and 1 when lifting")
}

func (c *codecFlags) options() []transcoder.Option {
	var opts []transcoder.Option
	if c.utf16 {
		opts = append(opts, transcoder.WithEncoding(transcoder.UTF16))
	}
	if c.strictBool {
		opts = append(opts, transcoder.StrictBool())
	}
	return opts
}

func newLowerCmd(a *app) *cobra.Command {
	var codec codecFlags
	cmd := &cobra.Command{
		Use:   "lower <type> <value>",
		Short: "show the flat slots and memory bytes of a value",
		Long: `Lower converts a YAML or JSON value of the given type expression to its
flat core values and to its linear memory form, and lifts the memory form
back. Variants are written {case: payload}, results {ok: v} or {err: v},
options as null or the payload and flags as a list of labels.

	cabi lower 'tuple<u16, string>' '[8080, "ok"]'
	cabi lower -f fs.yaml entry '{path: /tmp, size: 4096, kind: directory}'
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := a.load(false)
			if err != nil {
				return err
			}
			t, err := types.ParseType(args[0], i)
			if err != nil {
				return err
			}
			v, err := parseValue(args[1], t)
			if err != nil {
				return err
			}
			l, err := lowerValue(t, v, codec.options())
			if err != nil {
				return err
			}
			a.log.Debug("lowered value",
				zap.Stringer("type", t),
				zap.Int("slots", len(l.flat)),
				zap.Int("allocations", len(l.blocks)))
			a.printLowering(t, l)
			return nil
		},
	}
	codec.register(cmd)
	return cmd
}

func (a *app) printLowering(t types.Type, l *lowering) {
	p := a.out
	p.printf("%s  size %d  align %d\n", p.paint(typeStyle, t.String()), t.Size(), t.Align())
	p.printf("  flat    %s = %s\n", flatString(t.Flat()), p.paint(resultStyle, slotsString(l.flat)))
	a.printBlocks(l.mem, l.blocks, map[uint32]string{l.addr: "value"})
	p.printf("  lifted  %s\n", p.paint(resultStyle, fmt.Sprintf("%v", l.lifted)))
}

// printBlocks dumps every allocation, naming the ones in labels.
func (a *app) printBlocks(s *session, blocks []block, labels map[uint32]string) {
	p := a.out
	const indent = "                "
	for _, b := range blocks {
		label, ok := labels[b.ptr]
		if !ok {
			label = "alloc"
		}
		p.printf("  %-6s  @%-6d (%d bytes, align %d)\n", label, b.ptr, b.size, b.align)
		if b.size > 0 {
			p.printf("%s%s\n", indent, hexBytes(s.bytes(b), indent))
		}
	}
}
