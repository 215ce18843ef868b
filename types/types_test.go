//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package types

import (
	"testing"
)

var parseTests = []struct {
	input string
	t     DataType
}{
	{"INTEGER", TInteger},
	{"int", TInteger},
	{" i ", TInteger},
	{"Float", TFloat},
	{"f", TFloat},
	{"STRING", TString},
	{"str", TString},
}

func TestParseDataType(t *testing.T) {
	for idx, test := range parseTests {
		typ, err := ParseDataType(test.input)
		if err != nil {
			t.Errorf("test %d: failed to parse '%s': %s", idx, test.input, err)
			continue
		}
		if typ != test.t {
			t.Errorf("test %d: got %v, expected %v", idx, typ, test.t)
		}
	}
	_, err := ParseDataType("decimal")
	if err == nil {
		t.Errorf("ParseDataType accepted unknown type")
	}
}

func TestDataTypeString(t *testing.T) {
	if TInteger.String() != "INTEGER" {
		t.Errorf("unexpected name %s", TInteger)
	}
	if TFloat.ShortString() != "f" {
		t.Errorf("unexpected short name %s", TFloat.ShortString())
	}
	if !TFloat.Numeric() || TString.Numeric() {
		t.Errorf("Numeric failed")
	}
	if !TUndefined.Undefined() {
		t.Errorf("Undefined failed")
	}
}
