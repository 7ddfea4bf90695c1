package acir

import (
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// MulTerm is a quadratic term q * w_l * w_r of an arithmetic expression.
type MulTerm struct {
	Coefficient  fr.Element `cbor:"q"`
	WitnessLeft  Witness    `cbor:"wl"`
	WitnessRight Witness    `cbor:"wr"`
}

// LinearTerm is a linear term q * w of an arithmetic expression.
type LinearTerm struct {
	Coefficient fr.Element `cbor:"q"`
	Witness     Witness    `cbor:"w"`
}

// Expression is the payload of an AssertZero gate: the sum of its mul
// terms, linear combinations and constant is asserted to equal zero.
// Expressions are also used for Brillig call inputs and predicates, where
// they are fully evaluated instead of asserted.
type Expression struct {
	MulTerms           []MulTerm    `cbor:"mul,omitempty"`
	LinearCombinations []LinearTerm `cbor:"lin,omitempty"`
	Constant           fr.Element   `cbor:"const"`
}

// ConstantExpression builds an expression with no witness terms.
func ConstantExpression(v fr.Element) *Expression {
	return &Expression{Constant: v}
}

// WitnessExpression builds the expression 1*w.
func WitnessExpression(w Witness) *Expression {
	var one fr.Element
	one.SetOne()
	return &Expression{LinearCombinations: []LinearTerm{{Coefficient: one, Witness: w}}}
}

// IsConstant reports whether the expression has no witness terms.
func (e *Expression) IsConstant() bool {
	return len(e.MulTerms) == 0 && len(e.LinearCombinations) == 0
}

func (e *Expression) String() string {
	var parts []string
	for _, t := range e.MulTerms {
		parts = append(parts, t.Coefficient.String()+"*"+t.WitnessLeft.String()+"*"+t.WitnessRight.String())
	}
	for _, t := range e.LinearCombinations {
		parts = append(parts, t.Coefficient.String()+"*"+t.Witness.String())
	}
	if len(parts) == 0 || !e.Constant.IsZero() {
		parts = append(parts, e.Constant.String())
	}
	return "EXPR [ " + strings.Join(parts, " + ") + " = 0 ]"
}

// Evaluate computes the expression's value against the witness map. It
// fails with ErrMissingInput when any referenced witness is unbound.
func (e *Expression) Evaluate(witness WitnessMap) (fr.Element, error) {
	var acc fr.Element
	acc.Set(&e.Constant)
	for _, t := range e.MulTerms {
		l, ok := witness.Get(t.WitnessLeft)
		if !ok {
			return acc, missingInput(t.WitnessLeft)
		}
		r, ok := witness.Get(t.WitnessRight)
		if !ok {
			return acc, missingInput(t.WitnessRight)
		}
		var term fr.Element
		term.Mul(&l, &r)
		term.Mul(&term, &t.Coefficient)
		acc.Add(&acc, &term)
	}
	for _, t := range e.LinearCombinations {
		v, ok := witness.Get(t.Witness)
		if !ok {
			return acc, missingInput(t.Witness)
		}
		var term fr.Element
		term.Mul(&v, &t.Coefficient)
		acc.Add(&acc, &term)
	}
	return acc, nil
}
