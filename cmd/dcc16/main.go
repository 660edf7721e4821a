// Command dcc16 is the CLI entry point (SPEC_FULL.md §1.1): a single cobra
// root command that routes each positional file to the full `.c` pipeline or
// straight to the assembler, depending on its extension (spec.md §6).
//
// Grounded on the teacher's own `main.go`: one `cobra.Command` with
// `PersistentFlags` for output directory, verbosity, and an include-path
// slice, and the same "build a translation unit, translate it, report the
// error and exit 1" control flow — generalized from goat's single-source
// `Run` to this dialect's multi-file-then-link CLI (spec.md §6: one process
// invocation covers every input file, ending in a single linked image).
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/gocompilers/dcc16/internal/backend"
	"github.com/gocompilers/dcc16/internal/diag"
	"github.com/gocompilers/dcc16/internal/driver"
	"github.com/gocompilers/dcc16/internal/link"
	"github.com/gocompilers/dcc16/internal/types"
)

var command = &cobra.Command{
	Use:           "dcc16 source... [-o output_directory]",
	Args:          cobra.MinimumNArgs(1),
	RunE:          run,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	command.PersistentFlags().StringP("output", "o", "", "output directory for generated .dasm listings and the linked image")
	command.PersistentFlags().Bool("S", false, "halt after code generation, writing one <name>.c.dasm per .c input")
	command.PersistentFlags().String("conv", "stackcall", "default calling convention for functions without __regcall/__stackcall (stackcall, regcall)")
	command.PersistentFlags().StringSliceP("include-path", "I", nil, "additional search path (accepted for interface parity; this dialect has no #include)")
	command.PersistentFlags().BoolP("verbose", "v", false, "echo each phase transition to stderr")
}

func main() {
	if err := command.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	output, _ := cmd.PersistentFlags().GetString("output")
	stopAfterCodegen, _ := cmd.PersistentFlags().GetBool("S")
	convStr, _ := cmd.PersistentFlags().GetString("conv")
	verbose, _ := cmd.PersistentFlags().GetBool("verbose")
	// include-path is parsed for interface parity with the teacher's -I flag
	// (SPEC_FULL.md §1.1); this dialect has no preprocessor to search with it.
	_, _ = cmd.PersistentFlags().GetStringSlice("include-path")

	conv, err := parseConv(convStr)
	if err != nil {
		return err
	}

	if output != "" {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return fmt.Errorf("dcc16: creating output directory %q: %w", output, err)
		}
	}

	color := isatty.IsTerminal(os.Stdout.Fd())

	var units []link.Unit
	hadError := false

	for _, path := range args {
		if verbose {
			fmt.Fprintf(os.Stderr, "dcc16: compiling %s\n", path)
		}
		res, err := compileOne(path, conv)
		if err != nil {
			reportError(path, err, color)
			hadError = true
			continue
		}

		if stopAfterCodegen {
			if err := writeDasm(path, output, res.Listing, verbose); err != nil {
				reportError(path, err, color)
				hadError = true
			}
			continue
		}

		units = append(units, link.NewUnit(path, res.Object))
	}

	if hadError {
		return errSilent
	}
	if stopAfterCodegen {
		return nil
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "dcc16: linking")
	}
	words, err := link.Link(units, 0)
	if err != nil {
		fmt.Fprintln(os.Stdout, err)
		return errSilent
	}

	if output != "" {
		if err := writeImage(output, words); err != nil {
			return fmt.Errorf("dcc16: writing linked image: %w", err)
		}
	}
	for _, w := range words {
		fmt.Printf("%04x\n", w)
	}
	return nil
}

// errSilent is returned when a per-file diagnostic has already been printed
// (spec.md §6's "exit non-zero when any phase records an error"); main's
// os.Exit(1) needs no further message for it.
var errSilent = errors.New("dcc16: one or more units failed")

func parseConv(s string) (types.CallConv, error) {
	switch strings.ToLower(s) {
	case "", "stackcall":
		return types.StackCall, nil
	case "regcall":
		return types.RegCall, nil
	default:
		return 0, fmt.Errorf("dcc16: unknown --conv %q (want stackcall or regcall)", s)
	}
}

func compileOne(path string, conv types.CallConv) (*driver.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := string(data)
	switch ext := filepath.Ext(path); ext {
	case ".c":
		return driver.CompileCWithConv(src, path, conv)
	case ".dasm", ".asm":
		return driver.AssembleText(src, path)
	default:
		return nil, fmt.Errorf("%s: unrecognized extension %q (want .c, .dasm, or .asm)", path, ext)
	}
}

// writeDasm writes the -S listing for one input (spec.md §6: "writing
// per-input <name>.c.dasm files"). A best-effort asmfmt pass aligns columns;
// a formatting failure silently falls back to the raw listing, since asmfmt
// targets Go's own assembly dialect and isn't guaranteed to accept ours.
func writeDasm(path, outputDir string, listing *backend.Listing, verbose bool) error {
	text := listing.String()
	if formatted, err := listing.Format(); err == nil {
		text = formatted
	} else if verbose {
		fmt.Fprintf(os.Stderr, "dcc16: %s: asmfmt: %v (using unformatted listing)\n", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := name + filepath.Ext(path) + ".dasm"
	if outputDir != "" {
		out = filepath.Join(outputDir, out)
	}
	return os.WriteFile(out, []byte(text), 0o644)
}

func writeImage(outputDir string, words []uint16) error {
	var sb strings.Builder
	for _, w := range words {
		fmt.Fprintf(&sb, "%04x\n", w)
	}
	return os.WriteFile(filepath.Join(outputDir, "a.out.hex"), []byte(sb.String()), 0o644)
}

// reportError renders err to stdout in spec.md §6's diagnostic form when it
// carries source position (a *diag.FatalError from a fatal lex/syntax/
// internal error); any other error (codegen/assemble/link failures, a
// missing file) is printed plainly.
func reportError(path string, err error, color bool) {
	var fatal *diag.FatalError
	if errors.As(err, &fatal) {
		diag.RenderFatal(os.Stdout, fatal, color)
		return
	}
	fmt.Fprintf(os.Stdout, "%s: %v\n", path, err)
}
