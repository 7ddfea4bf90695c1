package proc

import (
	"testing"

	"github.com/manastech/noir/pkg/acir"
)

func TestBreakpointRegistrySetAndClear(t *testing.T) {
	r := NewBreakpointRegistry()

	bp, created := r.Set(acir.AcirLocation(3))
	if !created {
		t.Fatal("first Set did not create a breakpoint")
	}
	if bp.ID != 1 {
		t.Errorf("first breakpoint ID = %d, want 1", bp.ID)
	}

	// Setting the same address again is a no-op.
	again, created := r.Set(acir.AcirLocation(3))
	if created {
		t.Error("second Set created a duplicate breakpoint")
	}
	if again != bp {
		t.Error("second Set did not return the existing breakpoint")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if !r.Has(acir.AcirLocation(3)) {
		t.Error("Has = false for a set address")
	}

	cleared, ok := r.Clear(acir.AcirLocation(3))
	if !ok || cleared != bp {
		t.Error("Clear did not return the set breakpoint")
	}
	if _, ok := r.Clear(acir.AcirLocation(3)); ok {
		t.Error("Clear reported success for a cleared address")
	}
}

func TestBreakpointRegistryAllSorted(t *testing.T) {
	r := NewBreakpointRegistry()
	r.Set(acir.BrilligLocation(2, 5))
	r.Set(acir.AcirLocation(7))
	r.Set(acir.AcirLocation(2))

	all := r.All()
	want := []acir.OpcodeLocation{
		acir.AcirLocation(2),
		acir.BrilligLocation(2, 5),
		acir.AcirLocation(7),
	}
	if len(all) != len(want) {
		t.Fatalf("All returned %d breakpoints, want %d", len(all), len(want))
	}
	for i := range want {
		if all[i].Addr != want[i] {
			t.Errorf("All[%d].Addr = %s, want %s", i, all[i].Addr, want[i])
		}
	}
}
