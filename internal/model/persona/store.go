package persona

import "github.com/rayamira/concierge/backend/internal/analysis/lang"

// Store exposes persona retrieval for the orchestrator and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	FindByLanguage(l lang.Language) (Persona, bool)
	Other(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice; the persona set is
// fixed at startup.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the predefined persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// FindByLanguage returns the persona that answers for the given classifier
// language.
func (s *MemoryStore) FindByLanguage(l lang.Language) (Persona, bool) {
	for _, item := range s.items {
		if item.Classified() == l {
			return item, true
		}
	}
	return Persona{}, false
}

// Other returns the counterpart of the given persona, used for the
// both-personas reply sequence.
func (s *MemoryStore) Other(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID != id {
			return item, true
		}
	}
	return Persona{}, false
}
