//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package types

import (
	"sort"
	"strconv"
	"strings"

	"github.com/markkurossi/text/superscript"
)

// PartyID identifies a party. Valid party IDs are positive.
type PartyID int

func (id PartyID) String() string {
	return strconv.Itoa(int(id))
}

// Parties is an immutable, sorted set of party IDs. The zero value is
// the empty set. All operations return new sets and never modify
// their receiver or arguments.
type Parties struct {
	ids []PartyID
}

// NewParties creates a party set from the argument IDs. Duplicates
// are removed.
func NewParties(ids ...PartyID) Parties {
	if len(ids) == 0 {
		return Parties{}
	}
	result := make([]PartyID, len(ids))
	copy(result, ids)
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	n := 1
	for i := 1; i < len(result); i++ {
		if result[i] != result[n-1] {
			result[n] = result[i]
			n++
		}
	}
	return Parties{
		ids: result[:n],
	}
}

// Len returns the number of parties in the set.
func (set Parties) Len() int {
	return len(set.ids)
}

// IsEmpty tests if the set is empty.
func (set Parties) IsEmpty() bool {
	return len(set.ids) == 0
}

// Contains tests if the set contains the party.
func (set Parties) Contains(id PartyID) bool {
	idx := sort.Search(len(set.ids), func(i int) bool {
		return set.ids[i] >= id
	})
	return idx < len(set.ids) && set.ids[idx] == id
}

// Covers tests if the set contains all parties of o.
func (set Parties) Covers(o Parties) bool {
	for _, id := range o.ids {
		if !set.Contains(id) {
			return false
		}
	}
	return true
}

// Equal tests if the sets contain the same parties.
func (set Parties) Equal(o Parties) bool {
	if len(set.ids) != len(o.ids) {
		return false
	}
	for idx, id := range set.ids {
		if o.ids[idx] != id {
			return false
		}
	}
	return true
}

// Single returns the only party of the set. The boolean result is
// false if the set does not have exactly one member.
func (set Parties) Single() (PartyID, bool) {
	if len(set.ids) != 1 {
		return 0, false
	}
	return set.ids[0], true
}

// Min returns the smallest party ID of the set, or 0 for an empty set.
func (set Parties) Min() PartyID {
	if len(set.ids) == 0 {
		return 0
	}
	return set.ids[0]
}

// Union returns the union of the sets.
func (set Parties) Union(o ...Parties) Parties {
	ids := append([]PartyID{}, set.ids...)
	for _, s := range o {
		ids = append(ids, s.ids...)
	}
	return NewParties(ids...)
}

// Intersect returns the intersection of the sets.
func (set Parties) Intersect(o Parties) Parties {
	var ids []PartyID
	for _, id := range set.ids {
		if o.Contains(id) {
			ids = append(ids, id)
		}
	}
	return Parties{
		ids: ids,
	}
}

// Subtract returns the parties of the set that are not in o.
func (set Parties) Subtract(o Parties) Parties {
	var ids []PartyID
	for _, id := range set.ids {
		if !o.Contains(id) {
			ids = append(ids, id)
		}
	}
	return Parties{
		ids: ids,
	}
}

// Array returns the parties as a sorted slice.
func (set Parties) Array() []PartyID {
	return append([]PartyID{}, set.ids...)
}

func (set Parties) String() string {
	var sb strings.Builder
	sb.WriteRune('{')
	for idx, id := range set.ids {
		if idx > 0 {
			sb.WriteRune(',')
		}
		sb.WriteString(id.String())
	}
	sb.WriteRune('}')
	return sb.String()
}

// Superscript returns the set as concatenated superscript party IDs,
// for example "¹²".
func (set Parties) Superscript() string {
	var sb strings.Builder
	for idx, id := range set.ids {
		if idx > 0 {
			sb.WriteString("˙")
		}
		sb.WriteString(superscript.Itoa(int(id)))
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (set Parties) MarshalText() ([]byte, error) {
	return []byte(set.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (set *Parties) UnmarshalText(data []byte) error {
	str := strings.TrimSpace(string(data))
	str = strings.TrimPrefix(str, "{")
	str = strings.TrimSuffix(str, "}")
	var ids []PartyID
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return err
		}
		ids = append(ids, PartyID(v))
	}
	*set = NewParties(ids...)
	return nil
}
