//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package compiler

import (
	"io"

	"github.com/markkurossi/conclave/codegen"
	"github.com/markkurossi/conclave/codegen/jiff"
	"github.com/markkurossi/conclave/codegen/oblivc"
	"github.com/markkurossi/conclave/codegen/python"
	"github.com/markkurossi/conclave/codegen/spark"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/log"
)

// Params specify compiler parameters.
type Params struct {
	Config   *config.Config
	Backends codegen.Backends
	Logger   log.Logger

	// DotOut receives the rewritten graph in Graphviz dot format.
	DotOut io.WriteCloser
	// PPOut receives the rewritten graph in text format.
	PPOut io.WriteCloser
}

// NewParams returns new compiler params object, initialized with the
// default values and all backends.
func NewParams(cfg *config.Config) *Params {
	if cfg == nil {
		cfg = config.New()
	}
	return &Params{
		Config:   cfg,
		Backends: DefaultBackends(),
		Logger:   log.Nop(),
	}
}

// DefaultBackends returns all code generation backends.
func DefaultBackends() codegen.Backends {
	return codegen.NewBackends(python.New(), spark.New(), jiff.New(),
		oblivc.New())
}

// Close closes all open resources.
func (p *Params) Close() {
	if p.DotOut != nil {
		p.DotOut.Close()
		p.DotOut = nil
	}
	if p.PPOut != nil {
		p.PPOut.Close()
		p.PPOut = nil
	}
}
