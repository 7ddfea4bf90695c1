package acir

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Witness is the index of one witness in the circuit's solution.
type Witness uint32

func (w Witness) String() string {
	return fmt.Sprintf("_%d", uint32(w))
}

// WitnessMap maps witness indices to field values. It is the circuit's
// (partial) solution: created from the initial assignment, grown during
// solving, and returned as the final solution when execution finishes.
type WitnessMap map[Witness]fr.Element

// Get returns the value bound to w, if any.
func (m WitnessMap) Get(w Witness) (fr.Element, bool) {
	v, ok := m[w]
	return v, ok
}

// Insert binds w to v, overwriting any previous binding, and returns the
// previous value if there was one.
func (m WitnessMap) Insert(w Witness, v fr.Element) *fr.Element {
	prev, ok := m[w]
	m[w] = v
	if !ok {
		return nil
	}
	return &prev
}

// Copy returns an independent copy of the map.
func (m WitnessMap) Copy() WitnessMap {
	c := make(WitnessMap, len(m))
	for w, v := range m {
		c[w] = v
	}
	return c
}

// Indices returns the bound witness indices in ascending order.
func (m WitnessMap) Indices() []Witness {
	ws := make([]Witness, 0, len(m))
	for w := range m {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i] < ws[j] })
	return ws
}

// Equal reports whether both maps bind the same witnesses to the same
// values.
func (m WitnessMap) Equal(other WitnessMap) bool {
	if len(m) != len(other) {
		return false
	}
	for w, v := range m {
		ov, ok := other[w]
		if !ok || !v.Equal(&ov) {
			return false
		}
	}
	return true
}

// ParseFieldElement parses a decimal or 0x-prefixed hex string into a field
// element, reducing modulo the field order.
func ParseFieldElement(s string) (fr.Element, error) {
	var v fr.Element
	bi, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return v, fmt.Errorf("invalid field value %q", s)
	}
	v.SetBigInt(bi)
	return v, nil
}
