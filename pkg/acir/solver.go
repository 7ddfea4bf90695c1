package acir

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrUnsatisfiedConstraint is reported when a gate's equation cannot hold
// given the currently bound witnesses. It is fatal to the current solve.
var ErrUnsatisfiedConstraint = errors.New("unsatisfied constraint")

// ErrMissingInput is reported when an opcode needs a witness that no
// earlier opcode has bound. It indicates a malformed or out-of-order
// program rather than a user error, and is fatal to the current solve.
var ErrMissingInput = errors.New("missing witness input")

func missingInput(w Witness) error {
	return fmt.Errorf("%w: %s", ErrMissingInput, w)
}

// GateSolver evaluates a single arithmetic gate against a witness map,
// deriving at most one new witness binding. The solve driver treats it as
// a black box stepping primitive.
type GateSolver interface {
	SolveGate(expr *Expression, witness WitnessMap) error
}

// ArithmeticSolver is the default gate solving primitive. For a gate with
// every witness bound it checks that the expression sums to zero. For a
// gate with exactly one unknown witness occurring linearly it derives that
// witness. Anything less determined is a missing-input failure.
type ArithmeticSolver struct{}

// SolveGate either verifies the gate or binds its single unknown witness.
// On failure the witness map is left untouched.
func (ArithmeticSolver) SolveGate(expr *Expression, witness WitnessMap) error {
	var acc fr.Element
	acc.Set(&expr.Constant)

	// Unknown witness and the coefficient its solution must divide by.
	var unknown Witness
	var unknownCoeff fr.Element
	haveUnknown := false

	addUnknown := func(w Witness, coeff fr.Element) error {
		if haveUnknown && unknown != w {
			return missingInput(w)
		}
		if !haveUnknown {
			unknown = w
			haveUnknown = true
		}
		unknownCoeff.Add(&unknownCoeff, &coeff)
		return nil
	}

	for _, t := range expr.MulTerms {
		l, lok := witness.Get(t.WitnessLeft)
		r, rok := witness.Get(t.WitnessRight)
		switch {
		case lok && rok:
			var term fr.Element
			term.Mul(&l, &r)
			term.Mul(&term, &t.Coefficient)
			acc.Add(&acc, &term)
		case lok:
			var coeff fr.Element
			coeff.Mul(&t.Coefficient, &l)
			if err := addUnknown(t.WitnessRight, coeff); err != nil {
				return err
			}
		case rok:
			var coeff fr.Element
			coeff.Mul(&t.Coefficient, &r)
			if err := addUnknown(t.WitnessLeft, coeff); err != nil {
				return err
			}
		default:
			// A product of two unknowns cannot be solved linearly.
			return missingInput(t.WitnessLeft)
		}
	}

	for _, t := range expr.LinearCombinations {
		if v, ok := witness.Get(t.Witness); ok {
			var term fr.Element
			term.Mul(&v, &t.Coefficient)
			acc.Add(&acc, &term)
			continue
		}
		if err := addUnknown(t.Witness, t.Coefficient); err != nil {
			return err
		}
	}

	if !haveUnknown {
		if !acc.IsZero() {
			return fmt.Errorf("%w: %s", ErrUnsatisfiedConstraint, expr)
		}
		return nil
	}

	// acc + unknownCoeff * w = 0  =>  w = -acc / unknownCoeff
	if unknownCoeff.IsZero() {
		if acc.IsZero() {
			// The unknown cancelled out and the gate holds for any value;
			// leave the witness unbound.
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnsatisfiedConstraint, expr)
	}
	var inv, value fr.Element
	inv.Inverse(&unknownCoeff)
	value.Neg(&acc)
	value.Mul(&value, &inv)
	witness.Insert(unknown, value)
	return nil
}
