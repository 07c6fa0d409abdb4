package handle

import "testing"

func TestInsertGetRemove(t *testing.T) {
	dev := NewDeviceID()
	s := NewStore[int](dev, KindSampler)

	h1 := s.Insert(10)
	h2 := s.Insert(20)

	if v, ok := s.Get(h1); !ok || *v != 10 {
		t.Fatalf("Get(h1): have (%v, %v), want (10, true)", v, ok)
	}
	if v, ok := s.Get(h2); !ok || *v != 20 {
		t.Fatalf("Get(h2): have (%v, %v), want (20, true)", v, ok)
	}

	v, ok := s.Remove(h1)
	if !ok || v != 10 {
		t.Fatalf("Remove(h1): have (%v, %v), want (10, true)", v, ok)
	}
	if _, ok := s.Get(h1); ok {
		t.Fatal("Get(h1) after Remove: have true, want false")
	}

	// The freed slot is recycled; the new handle must not alias h1.
	h3 := s.Insert(30)
	if h3.Equal(h1) {
		t.Fatalf("recycled handle unexpectedly equals the removed one")
	}
}

func TestKillMarksDeadWithoutFreeing(t *testing.T) {
	dev := NewDeviceID()
	s := NewStore[string](dev, KindRenderPass)
	h := s.Insert("a")

	s.Kill(h)
	if s.Alive(h) {
		t.Fatal("Alive after Kill: have true, want false")
	}
	if _, ok := s.Get(h); ok {
		t.Fatal("Get after Kill: have ok, want !ok")
	}

	// Insert must not reuse the killed-but-not-removed slot.
	h2 := s.Insert("b")
	if h2.Equal(h) {
		t.Fatal("Insert reused a killed-but-not-removed slot")
	}
}

func TestWrongDevicePanics(t *testing.T) {
	devA := NewDeviceID()
	devB := NewDeviceID()
	sa := NewStore[int](devA, KindSampler)
	sb := NewStore[int](devB, KindSampler)
	h := sa.Insert(1)

	defer func() {
		if recover() == nil {
			t.Fatal("Get across devices did not panic")
		}
	}()
	sb.Get(h)
}

func TestDynamicRoundTrip(t *testing.T) {
	dev := NewDeviceID()
	s := NewStore[float64](dev, KindSampler)
	h := s.Insert(3.5)

	dyn := h.Dynamic()
	if dyn.Kind() != KindSampler {
		t.Fatalf("dyn.Kind: have %v, want %v", dyn.Kind(), KindSampler)
	}

	h2, ok := As[float64](dyn, KindSampler)
	if !ok || !h2.Equal(h) {
		t.Fatalf("As: have (%v, %v), want (%v, true)", h2, ok, h)
	}

	if _, ok := As[float64](dyn, KindRenderPass); ok {
		t.Fatal("As with mismatched kind: have ok, want !ok")
	}
}

func TestHandleEqualIgnoresDevice(t *testing.T) {
	devA := NewDeviceID()
	devB := NewDeviceID()
	sa := NewStore[int](devA, KindSampler)
	sb := NewStore[int](devB, KindSampler)

	ha := sa.Insert(1)
	hb := sb.Insert(1)

	if !ha.Equal(hb) {
		t.Fatal("Equal across devices with same index/kind: have false, want true")
	}
}
