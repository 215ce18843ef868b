//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package dag

import (
	"fmt"

	"github.com/markkurossi/conclave/types"
)

// SchemaError reports a malformed node: an unknown column, an out of
// range column index, mismatched concatenation schemas, or an invalid
// parent reference.
type SchemaError struct {
	Node string
	Msg  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s: %s", e.Node, e.Msg)
}

func schemaErrorf(node, format string, a ...interface{}) error {
	return &SchemaError{
		Node: node,
		Msg:  fmt.Sprintf(format, a...),
	}
}

// VisibilityError reports an operation that would reveal data to a
// party not entitled to see it.
type VisibilityError struct {
	Node       string
	Party      types.PartyID
	Column     string
	Visibility types.Parties
}

func (e *VisibilityError) Error() string {
	return fmt.Sprintf("visibility error: %s: party %s may not see column %s (visible to %s)",
		e.Node, e.Party, e.Column, e.Visibility)
}
