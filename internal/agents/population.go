package agents

// Population owns every agent of a simulation, living or dead, in creation
// order. Dead agents stay in the collection as historical records.
type Population struct {
	beings []Being
	index  map[AgentID]Being
}

// NewPopulation creates a population from the given agents.
func NewPopulation(beings ...Being) *Population {
	p := &Population{index: make(map[AgentID]Being, len(beings))}
	p.Append(beings...)
	return p
}

// Append adds agents to the end of the collection.
func (p *Population) Append(beings ...Being) {
	for _, b := range beings {
		p.beings = append(p.beings, b)
		p.index[b.Core().ID] = b
	}
}

// All returns the agents in creation order. Callers must not modify the
// returned slice.
func (p *Population) All() []Being {
	return p.beings
}

// Len returns the number of agents ever created, dead ones included.
func (p *Population) Len() int {
	return len(p.beings)
}

// Lookup returns the agent with the given id, or nil when it is unknown.
func (p *Population) Lookup(id AgentID) Being {
	return p.index[id]
}

// Human returns the human with the given id, or nil when the id is unknown
// or belongs to an animal.
func (p *Population) Human(id AgentID) *Human {
	h, _ := p.index[id].(*Human)
	return h
}

// Humans returns every human, dead ones included.
func (p *Population) Humans() []*Human {
	var out []*Human
	for _, b := range p.beings {
		if h, ok := b.(*Human); ok {
			out = append(out, h)
		}
	}
	return out
}

// Animals returns every animal, dead ones included.
func (p *Population) Animals() []*Animal {
	var out []*Animal
	for _, b := range p.beings {
		if a, ok := b.(*Animal); ok {
			out = append(out, a)
		}
	}
	return out
}

// Alive returns the living agents.
func (p *Population) Alive() []Being {
	var out []Being
	for _, b := range p.beings {
		if b.Core().Alive {
			out = append(out, b)
		}
	}
	return out
}

// AliveCount returns the number of living agents.
func (p *Population) AliveCount() int {
	n := 0
	for _, b := range p.beings {
		if b.Core().Alive {
			n++
		}
	}
	return n
}

// MaxID returns the highest id in the collection, or 0 when empty.
func (p *Population) MaxID() AgentID {
	var highest AgentID
	for _, b := range p.beings {
		if id := b.Core().ID; id > highest {
			highest = id
		}
	}
	return highest
}
