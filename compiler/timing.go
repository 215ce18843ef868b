//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package compiler

import (
	"fmt"
	"io"
	"time"

	"github.com/markkurossi/tabulate"
)

// Timing measures the compiler passes. Each pass runs from the end
// of the previous pass.
type Timing struct {
	mark   time.Time
	Passes []Pass
}

// Pass describes one completed compiler pass.
type Pass struct {
	Label    string
	Duration time.Duration
	Result   string
}

// NewTiming starts the timing of the first pass.
func NewTiming() *Timing {
	return &Timing{
		mark: time.Now(),
	}
}

// Pass ends the current pass and records its result summary.
func (t *Timing) Pass(label, format string, a ...any) {
	now := time.Now()
	t.Passes = append(t.Passes, Pass{
		Label:    label,
		Duration: now.Sub(t.mark),
		Result:   fmt.Sprintf(format, a...),
	})
	t.mark = now
}

// Total returns the combined duration of the passes.
func (t *Timing) Total() time.Duration {
	var total time.Duration
	for _, p := range t.Passes {
		total += p.Duration
	}
	return total
}

// Print prints the pass table to w.
func (t *Timing) Print(w io.Writer) {
	if len(t.Passes) == 0 {
		return
	}
	total := t.Total()

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Pass").SetAlign(tabulate.ML)
	tab.Header("Time").SetAlign(tabulate.MR)
	tab.Header("Share").SetAlign(tabulate.MR)
	tab.Header("Result").SetAlign(tabulate.ML)

	for _, p := range t.Passes {
		row := tab.Row()
		row.Column(p.Label)
		row.Column(p.Duration.String())
		if total > 0 {
			row.Column(fmt.Sprintf("%.1f%%", 100*p.Duration.Seconds()/
				total.Seconds()))
		} else {
			row.Column("-")
		}
		row.Column(p.Result)
	}
	row := tab.Row()
	row.Column("Total").SetFormat(tabulate.FmtBold)
	row.Column(total.String()).SetFormat(tabulate.FmtBold)

	tab.Print(w)
}
