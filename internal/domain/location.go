package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// JunctionKind is the type of one hop inside a Location
type JunctionKind string

const (
	JunctionParachain JunctionKind = "parachain"
	JunctionAccount   JunctionKind = "account"
	JunctionIndex     JunctionKind = "index"
)

// Junction is a single interior hop of a Location
type Junction struct {
	Kind  JunctionKind
	Value string
}

func (j Junction) String() string {
	return fmt.Sprintf("%s(%s)", j.Kind, j.Value)
}

// Location addresses a chain, account or asset relative to the local chain.
// Parents counts the hops up towards the relay chain; Interior descends from
// there. The zero value is the local chain itself ("Here").
type Location struct {
	Parents  uint8
	Interior []Junction
}

// Here is the location of the local chain
var Here = Location{}

// RelayChain is the location of the parent relay chain
var RelayChain = Location{Parents: 1}

// IsHere reports whether the location points at the local chain
func (l Location) IsHere() bool {
	return l.Parents == 0 && len(l.Interior) == 0
}

// Equal compares two locations hop by hop
func (l Location) Equal(o Location) bool {
	if l.Parents != o.Parents || len(l.Interior) != len(o.Interior) {
		return false
	}
	for i := range l.Interior {
		if l.Interior[i] != o.Interior[i] {
			return false
		}
	}
	return true
}

// Chain returns the chain part of the location: the relay chain, a sibling
// parachain or a child parachain. ok is false when no chain can be derived.
func (l Location) Chain() (Location, bool) {
	switch {
	case l.Parents == 1 && len(l.Interior) > 0 && l.Interior[0].Kind == JunctionParachain:
		return Location{Parents: 1, Interior: []Junction{l.Interior[0]}}, true
	case l.Parents == 1:
		return RelayChain, true
	case l.Parents == 0 && len(l.Interior) > 0 && l.Interior[0].Kind == JunctionParachain:
		return Location{Interior: []Junction{l.Interior[0]}}, true
	default:
		return Location{}, false
	}
}

// Recipient returns the final junction when every hop before it only
// navigates between chains.
func (l Location) Recipient() (Junction, bool) {
	if len(l.Interior) == 0 {
		return Junction{}, false
	}
	for _, j := range l.Interior[:len(l.Interior)-1] {
		if j.Kind != JunctionParachain {
			return Junction{}, false
		}
	}
	return l.Interior[len(l.Interior)-1], true
}

// Append returns a copy of the location extended by one junction
func (l Location) Append(j Junction) Location {
	interior := make([]Junction, 0, len(l.Interior)+1)
	interior = append(interior, l.Interior...)
	interior = append(interior, j)
	return Location{Parents: l.Parents, Interior: interior}
}

// String renders the location as "../parachain(1000)/index(1984)"; Here is "."
func (l Location) String() string {
	if l.IsHere() {
		return "."
	}
	parts := make([]string, 0, int(l.Parents)+len(l.Interior))
	for i := 0; i < int(l.Parents); i++ {
		parts = append(parts, "..")
	}
	for _, j := range l.Interior {
		parts = append(parts, j.String())
	}
	return strings.Join(parts, "/")
}

// ParseLocation parses the textual form produced by Location.String
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return Here, nil
	}

	var loc Location
	for _, part := range strings.Split(s, "/") {
		if part == ".." {
			if len(loc.Interior) > 0 {
				return Location{}, fmt.Errorf("parent hop after interior junction in %q: %w", s, ErrBadLocation)
			}
			if loc.Parents == math.MaxUint8 {
				return Location{}, fmt.Errorf("more than %d parent hops in %q: %w", math.MaxUint8, s, ErrBadLocation)
			}
			loc.Parents++
			continue
		}

		open := strings.IndexByte(part, '(')
		if open <= 0 || !strings.HasSuffix(part, ")") {
			return Location{}, fmt.Errorf("malformed junction %q: %w", part, ErrBadLocation)
		}
		kind := JunctionKind(part[:open])
		value := part[open+1 : len(part)-1]
		if err := validateJunction(kind, value); err != nil {
			return Location{}, fmt.Errorf("junction %q: %w", part, err)
		}
		loc.Interior = append(loc.Interior, Junction{Kind: kind, Value: value})
	}
	return loc, nil
}

func validateJunction(kind JunctionKind, value string) error {
	if value == "" {
		return errors.Join(errors.New("empty junction value"), ErrBadLocation)
	}
	switch kind {
	case JunctionParachain, JunctionIndex:
		if _, err := strconv.ParseUint(value, 10, 32); err != nil {
			return errors.Join(err, ErrBadLocation)
		}
		return nil
	case JunctionAccount:
		return nil
	default:
		return fmt.Errorf("unknown junction kind %q: %w", kind, ErrBadLocation)
	}
}
