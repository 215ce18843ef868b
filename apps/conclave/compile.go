//
// compile.go
//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/compiler"
	"github.com/markkurossi/conclave/workflows"
	"github.com/urfave/cli/v2"
)

var (
	outFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "write the job manifest to `FILE` (default WORKFLOW.toml)",
	}
	dotFlag = &cli.BoolFlag{
		Name:  "dot",
		Usage: "write the rewritten graph in Graphviz dot format",
	}
	ppFlag = &cli.BoolFlag{
		Name:  "pp",
		Usage: "write the rewritten graph in text format",
	}
	timingFlag = &cli.BoolFlag{
		Name:  "timing",
		Usage: "print compiler pass timing",
	}
)

var compileCmd = &cli.Command{
	Name:      "compile",
	Usage:     "compile a workflow into a job manifest",
	ArgsUsage: "WORKFLOW",
	Flags:     []cli.Flag{outFlag, dotFlag, ppFlag, timingFlag},
	Action: func(cctx *cli.Context) error {
		out := cctx.String(outFlag.Name)
		if len(out) == 0 {
			out = cctx.Args().First() + ".toml"
		}
		result, err := compileWorkflow(cctx, func(params *compiler.Params) error {
			var err error
			if cctx.Bool(dotFlag.Name) {
				params.DotOut, err = createOutput(out, "dot")
				if err != nil {
					return err
				}
			}
			if cctx.Bool(ppFlag.Name) {
				params.PPOut, err = createOutput(out, "pp")
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		f, err := createOutput(out, "toml")
		if err != nil {
			return err
		}
		if err := result.Plan.Encode(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		result.Plan.Print(os.Stdout)
		if cctx.Bool(timingFlag.Name) {
			result.Timing.Print(os.Stdout)
		}
		return nil
	},
}

var dotCmd = &cli.Command{
	Name:      "dot",
	Usage:     "print the rewritten workflow graph in Graphviz dot format",
	ArgsUsage: "WORKFLOW",
	Action: func(cctx *cli.Context) error {
		_, err := compileWorkflow(cctx, func(params *compiler.Params) error {
			params.DotOut = nopCloser{os.Stdout}
			return nil
		})
		return err
	},
}

func compileWorkflow(cctx *cli.Context, init func(*compiler.Params) error) (
	*compiler.Result, error) {

	if cctx.NArg() != 1 {
		return nil, errors.New("expected one workflow name")
	}
	wf, err := workflows.Lookup(cctx.Args().First())
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cctx, wf)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cctx)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	params := compiler.NewParams(cfg)
	params.Logger = logger
	defer params.Close()

	if err := init(params); err != nil {
		return nil, err
	}
	return compiler.Compile(wf.Name, wf.Build, params)
}

// createOutput creates the file base with its extension replaced by
// suffix.
func createOutput(base, suffix string) (io.WriteCloser, error) {
	path := strings.TrimSuffix(base, filepath.Ext(base)) + "." + suffix
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &bufferedFile{
		Writer: bufio.NewWriter(f),
		file:   f,
	}, nil
}

type bufferedFile struct {
	*bufio.Writer
	file *os.File
}

func (bf *bufferedFile) Close() error {
	err := bf.Flush()
	if cerr := bf.file.Close(); err == nil {
		err = cerr
	}
	return err
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
