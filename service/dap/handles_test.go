package dap

import "testing"

func TestHandlesMapCreateAndGet(t *testing.T) {
	hs := newHandlesMap()

	h1 := hs.create(scopeWitness)
	h2 := hs.create(scopeRegisters)
	if h1 == h2 {
		t.Fatal("distinct values share a handle")
	}
	if h1 < startHandle {
		t.Errorf("first handle = %d, want >= %d", h1, startHandle)
	}

	v, ok := hs.get(h1)
	if !ok || v.(scopeKind) != scopeWitness {
		t.Errorf("get(%d) = (%v, %v), want scopeWitness", h1, v, ok)
	}
	if _, ok := hs.get(999999); ok {
		t.Error("get returned a value for an unknown handle")
	}
}

func TestHandlesMapReset(t *testing.T) {
	hs := newHandlesMap()
	h := hs.create(scopeMemory)
	hs.reset()
	if _, ok := hs.get(h); ok {
		t.Error("handle survived reset")
	}
	if got := hs.create(scopeLocals); got != startHandle {
		t.Errorf("first handle after reset = %d, want %d", got, startHandle)
	}
}
