//
// types.go
//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package types defines the column data types and party identities
// of workflow relations.
package types

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// DataType specifies a column data type.
type DataType int8

func (t DataType) String() string {
	for k, v := range DataTypes {
		if v == t {
			return k
		}
	}
	return fmt.Sprintf("{DataType %d}", t)
}

// ShortString returns a short string name for the data type.
func (t DataType) ShortString() string {
	name, ok := shortTypes[t]
	if ok {
		return name
	}
	return t.String()
}

// Column data types.
const (
	TUndefined DataType = iota
	TInteger
	TFloat
	TString
)

// DataTypes define the data types and their canonical names.
var DataTypes = map[string]DataType{
	"<Undefined>": TUndefined,
	"INTEGER":     TInteger,
	"FLOAT":       TFloat,
	"STRING":      TString,
}

var shortTypes = map[DataType]string{
	TUndefined: "?",
	TInteger:   "i",
	TFloat:     "f",
	TString:    "str",
}

// Undefined tests if the data type is undefined.
func (t DataType) Undefined() bool {
	return t == TUndefined
}

// Numeric tests if the data type supports arithmetic.
func (t DataType) Numeric() bool {
	return t == TInteger || t == TFloat
}

// ParseDataType parses the data type name. The names are matched case
// insensitively and both the canonical and short forms are accepted.
func ParseDataType(val string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "integer", "int", "i":
		return TInteger, nil

	case "float", "f":
		return TFloat, nil

	case "string", "str", "s":
		return TString, nil

	default:
		return TUndefined, errors.Newf("types.ParseDataType: unknown type: %s",
			val)
	}
}
