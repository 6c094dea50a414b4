package testutil

import "testing"

func TestFixturesShareLayout(t *testing.T) {
	m, v, w := Mask(), Values(), Weights()
	if m.Size() != v.Size() || v.Size() != w.Size() {
		t.Fatalf("sizes differ: mask=%d values=%d weights=%d", m.Size(), v.Size(), w.Size())
	}
	if got := Table().Frames(); len(got) != 2 {
		t.Errorf("Frames() = %v, want two frames", got)
	}
}

func TestMaskIsACopy(t *testing.T) {
	m := Mask()
	m.Data()[6] = 99
	if LabelData[6] != 1 {
		t.Error("Mask shares storage with LabelData")
	}
}
