// Command cabi inspects how interface types cross the Canonical ABI: core
// signatures, memory layouts and the bytes a value lowers to.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-canon/iface"
	"github.com/wippyai/wasm-canon/types"
)

func main() {
	cmd := newRootCmd(os.Stdout, isTerminal(os.Stdout))
	if err := cmd.Execute(); err != nil {
		msg := "Error: " + err.Error()
		if isTerminal(os.Stderr) {
			msg = errorStyle.Render(msg)
		}
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// app holds the state shared by every command.
type app struct {
	file  string
	debug bool
	color bool
	log   *zap.Logger
	out   *printer
}

func newRootCmd(out io.Writer, tty bool) *cobra.Command {
	a := &app{color: tty}
	cmd := &cobra.Command{
		Use:   "cabi",
		Short: "inspect Canonical ABI signatures, layouts and lowered values",
		Long: `Cabi loads an interface description (YAML, see package iface) and shows how
its functions and types map onto WebAssembly core values and linear memory.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = &printer{w: cmd.OutOrStdout(), color: a.color}
			if a.debug {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				a.log = l
			} else {
				a.log = zap.NewNop()
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVarP(&a.file, "file", "f", "", "interface description `file`")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "log debug output to stderr")
	cmd.PersistentFlags().BoolVar(&a.color, "color", tty, "style output")

	cmd.AddCommand(
		newSigCmd(a),
		newLayoutCmd(a),
		newLowerCmd(a),
		newArgsCmd(a),
		newBrowseCmd(a),
	)
	return cmd
}

// load reads the interface named by --file. Commands that only need
// primitive or anonymous types accept a missing flag and get an empty
// interface.
func (a *app) load(required bool) (*types.Interface, error) {
	if a.file == "" {
		if required {
			return nil, fmt.Errorf("an interface file is required (--file)")
		}
		return types.NewInterface(""), nil
	}
	i, err := iface.LoadFile(a.file)
	if err != nil {
		return nil, err
	}
	a.log.Debug("loaded interface",
		zap.String("file", a.file),
		zap.String("name", i.Name),
		zap.Int("types", len(i.Types())),
		zap.Int("functions", len(i.Funcs())))
	return i, nil
}

// funcs returns the functions named in args, or all of them.
func funcs(i *types.Interface, args []string) ([]*types.FuncType, error) {
	if len(args) == 0 {
		return i.Funcs(), nil
	}
	out := make([]*types.FuncType, 0, len(args))
	for _, name := range args {
		f, ok := i.Func(name)
		if !ok {
			return nil, fmt.Errorf("no function %q in %s", name, i.Name)
		}
		out = append(out, f)
	}
	return out, nil
}
