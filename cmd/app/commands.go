package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/urfave/cli/v3"

	"github.com/starford/mindmark/internal"
	"github.com/starford/mindmark/internal/ast"
	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/metrics"
	"github.com/starford/mindmark/internal/outline"
	"github.com/starford/mindmark/internal/parser"
	pkgconfig "github.com/starford/mindmark/pkg/config"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Input format: markdown, ast or nodetree",
		Value:   "markdown",
	}
}

// newManager builds a converter from the config file when one exists, and
// from defaults otherwise.
func newManager(cmd *cli.Command) (*converter.Manager, error) {
	cfg := internal.NewDefaultConfig()
	if p := cmd.String("config"); p != "" {
		if _, err := os.Stat(p); err == nil {
			if err := pkgconfig.Load(p, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel, internal.LogFormatText)
	return converter.NewManager(cfg.Converter, logger), nil
}

// readInput reads the file named by the first argument, or stdin when the
// argument is missing or "-".
func readInput(cmd *cli.Command, stdin io.Reader) (string, []byte, error) {
	name := cmd.Args().First()
	if name == "" || name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", nil, fmt.Errorf("read stdin: %w", err)
		}
		return "", data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", nil, fmt.Errorf("read input: %w", err)
	}
	return filepath.Base(name), data, nil
}

// decodeDocument turns raw input into the value the converter expects.
// Markdown frontmatter is dropped; the body is what gets converted.
func decodeDocument(data []byte, format converter.Format) (any, error) {
	if format != converter.FormatMarkdown {
		return converter.Decode(data, format)
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func writeOutput(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func convertDocument(m *converter.Manager, data []byte, from, to converter.Format, w io.Writer) error {
	doc, err := decodeDocument(data, from)
	if err != nil {
		return err
	}
	start := time.Now()
	out, err := m.Convert(doc, from, to)
	metrics.ObserveConversion(string(from)+"_to_"+string(to), start, err)
	if err != nil {
		return err
	}
	return writeOutput(w, out)
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert a document between markdown, ast and nodetree",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Input format", Value: "markdown"},
			&cli.StringFlag{Name: "to", Usage: "Output format", Value: "nodetree"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			from, err := converter.ParseFormat(cmd.String("from"))
			if err != nil {
				return err
			}
			to, err := converter.ParseFormat(cmd.String("to"))
			if err != nil {
				return err
			}
			m, err := newManager(cmd)
			if err != nil {
				return err
			}
			_, data, err := readInput(cmd, os.Stdin)
			if err != nil {
				return err
			}
			return convertDocument(m, data, from, to, os.Stdout)
		},
	}
}

func renderOutline(m *converter.Manager, title string, data []byte, format converter.Format, opts outline.Options) (string, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return "", err
	}
	if format == converter.FormatMarkdown {
		if res, err := parser.Parse(data); err == nil && res.Title != "" {
			title = res.Title
		}
	}
	out, err := m.Convert(doc, format, converter.FormatAST)
	if err != nil {
		return "", err
	}
	if opts.Title == "" {
		opts.Title = title
	}
	return outline.Render(out.(*ast.Node), opts), nil
}

func outlineCommand() *cli.Command {
	return &cli.Command{
		Name:      "outline",
		Usage:     "Print a document as a tree",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			formatFlag(),
			&cli.BoolFlag{Name: "notes", Aliases: []string{"n"}, Usage: "Show the first line of each node's notes"},
			&cli.BoolFlag{Name: "plain", Usage: "Disable colors"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			format, err := converter.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			m, err := newManager(cmd)
			if err != nil {
				return err
			}
			name, data, err := readInput(cmd, os.Stdin)
			if err != nil {
				return err
			}
			s, err := renderOutline(m, name, data, format, outline.Options{
				Notes:  cmd.Bool("notes"),
				Styled: !cmd.Bool("plain"),
			})
			if err != nil {
				return err
			}
			return writeOutput(os.Stdout, s)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Count nodes by type and report the maximum depth",
		ArgsUsage: "[file]",
		Flags:     []cli.Flag{formatFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			format, err := converter.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			m, err := newManager(cmd)
			if err != nil {
				return err
			}
			_, data, err := readInput(cmd, os.Stdin)
			if err != nil {
				return err
			}
			doc, err := decodeDocument(data, format)
			if err != nil {
				return err
			}
			st, err := m.GetStats(doc, format)
			if err != nil {
				return err
			}
			return writeOutput(os.Stdout, st)
		},
	}
}

// validateDocument writes "valid" or the per-node problems. A document with
// problems is reported as an error so the exit status is non-zero.
func validateDocument(m *converter.Manager, data []byte, format converter.Format, w io.Writer) error {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return err
	}
	err = m.Validate(doc, format)
	var verrs validation.Errors
	switch {
	case err == nil:
		return writeOutput(w, "valid")
	case errors.As(err, &verrs):
		if werr := writeOutput(w, verrs); werr != nil {
			return werr
		}
		return fmt.Errorf("document has %d problem(s)", len(verrs))
	}
	return err
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check the structure of a document",
		ArgsUsage: "[file]",
		Flags:     []cli.Flag{formatFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			format, err := converter.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			m, err := newManager(cmd)
			if err != nil {
				return err
			}
			_, data, err := readInput(cmd, os.Stdin)
			if err != nil {
				return err
			}
			return validateDocument(m, data, format, os.Stdout)
		},
	}
}

func roundTripCommand() *cli.Command {
	return &cli.Command{
		Name:      "roundtrip",
		Usage:     "Drive a document through the full conversion cycle and report differences",
		ArgsUsage: "[file]",
		Flags:     []cli.Flag{formatFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			format, err := converter.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			m, err := newManager(cmd)
			if err != nil {
				return err
			}
			_, data, err := readInput(cmd, os.Stdin)
			if err != nil {
				return err
			}
			doc, err := decodeDocument(data, format)
			if err != nil {
				return err
			}
			rt, err := m.RoundTripTest(doc, format)
			if err != nil {
				return err
			}
			if err := writeOutput(os.Stdout, rt); err != nil {
				return err
			}
			if !rt.Success {
				return errors.New("structure changed during the round trip")
			}
			return nil
		},
	}
}
