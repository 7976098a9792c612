package agents

import "testing"

func TestPopulationLookup(t *testing.T) {
	h := NewHuman(1, "Ayse", 30, GenderFemale)
	a := NewAnimal(2, "Pamuk", 3, GenderFemale, "cat")
	pop := NewPopulation(h, a)

	if pop.Lookup(1) != h {
		t.Error("Lookup(1) should return the human")
	}
	if pop.Lookup(99) != nil {
		t.Error("Lookup of unknown id should return nil")
	}
	if pop.Human(2) != nil {
		t.Error("Human() on an animal id should return nil")
	}
	if pop.Human(1) != h {
		t.Error("Human(1) should return the human")
	}
}

func TestPopulationCounts(t *testing.T) {
	pop := NewPopulation(
		NewHuman(1, "a", 20, GenderMale),
		NewHuman(2, "b", 20, GenderFemale),
		NewAnimal(3, "c", 2, GenderMale, "dog"),
	)
	pop.Lookup(2).Die()

	if pop.Len() != 3 {
		t.Errorf("Len() = %d, want 3", pop.Len())
	}
	if pop.AliveCount() != 2 {
		t.Errorf("AliveCount() = %d, want 2", pop.AliveCount())
	}
	if len(pop.Alive()) != 2 {
		t.Errorf("len(Alive()) = %d, want 2", len(pop.Alive()))
	}
	if len(pop.Humans()) != 2 || len(pop.Animals()) != 1 {
		t.Errorf("humans/animals = %d/%d", len(pop.Humans()), len(pop.Animals()))
	}
	if pop.MaxID() != 3 {
		t.Errorf("MaxID() = %d, want 3", pop.MaxID())
	}
}
