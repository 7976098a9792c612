package entropy

import "testing"

func TestSeededIsReproducible(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)
	for i := 0; i < 100; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("draw %d differs between sources with the same seed", i)
		}
	}
}

func TestCryptoRanges(t *testing.T) {
	c := NewCrypto()
	for i := 0; i < 1000; i++ {
		f := c.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("Float64() = %v out of [0,1)", f)
		}
		n := c.Intn(7)
		if n < 0 || n >= 7 {
			t.Fatalf("Intn(7) = %d out of range", n)
		}
	}
}

func TestCryptoShuffleIsPermutation(t *testing.T) {
	c := NewCrypto()
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	c.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	seen := make(map[int]bool)
	for _, v := range items {
		seen[v] = true
	}
	if len(seen) != 10 {
		t.Fatalf("shuffle lost elements: %v", items)
	}
}

func TestPick(t *testing.T) {
	src := NewSeeded(1)
	if _, ok := Pick[string](src, nil); ok {
		t.Fatal("Pick on empty slice should report false")
	}
	got, ok := Pick(src, []string{"only"})
	if !ok || got != "only" {
		t.Fatalf("Pick = %q, %v", got, ok)
	}
}

func TestScripted(t *testing.T) {
	s := &Scripted{Values: []float64{0.1, 0.9}}
	if !Chance(s, 0.5) {
		t.Error("0.1 should pass a 0.5 chance")
	}
	if Chance(s, 0.5) {
		t.Error("0.9 should fail a 0.5 chance")
	}
	// Exhausted: repeats the last value.
	if got := s.Intn(10); got != 9 {
		t.Errorf("Intn(10) after exhaustion = %d, want 9", got)
	}
}

func TestForSeed(t *testing.T) {
	if _, ok := ForSeed(0).(*Crypto); !ok {
		t.Error("seed 0 should yield a crypto source")
	}
	if _, ok := ForSeed(5).(*Crypto); ok {
		t.Error("non-zero seed should yield a seeded source")
	}
}
