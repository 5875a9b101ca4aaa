package model

import (
	"fmt"
)

// EntityRef addresses an entity in an EntityStore by insertion position.
type EntityRef int

// EntityStore is the ordered collection of an interview's entities.
// Appends never overwrite, duplicates are kept. It is not safe for concurrent use.
type EntityStore struct {
	entities []Entity
}

// NewEntityStore creates a store holding a copy of entities.
func NewEntityStore(entities ...Entity) *EntityStore {
	s := &EntityStore{entities: make([]Entity, 0, len(entities))}
	s.entities = append(s.entities, entities...)
	return s
}

// Append adds an entity at the end and returns its reference.
func (s *EntityStore) Append(entity Entity) EntityRef {
	s.entities = append(s.entities, entity)
	return EntityRef(len(s.entities) - 1)
}

// Len returns the number of entities.
func (s *EntityStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entities)
}

// Get returns the entity for ref.
func (s *EntityStore) Get(ref EntityRef) (Entity, bool) {
	if s == nil || int(ref) < 0 || int(ref) >= len(s.entities) {
		return Entity{}, false
	}
	return s.entities[ref], true
}

// All returns a copy of all entities in insertion order.
func (s *EntityStore) All() []Entity {
	if s == nil {
		return []Entity{}
	}
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// ByChunk returns the entities of a chunk in insertion order.
func (s *EntityStore) ByChunk(chunkID string) []Entity {
	var out []Entity
	if s == nil {
		return out
	}
	for _, e := range s.entities {
		if e.ChunkID == chunkID {
			out = append(out, e)
		}
	}
	return out
}

// MergeLinkAttrs merges attrs into the entity's links. Empty values are skipped.
func (s *EntityStore) MergeLinkAttrs(ref EntityRef, attrs Links) error {
	return s.Update(ref, func(e *Entity) error {
		for k, v := range attrs {
			e.SetLink(k, v)
		}
		return nil
	})
}

// Update applies fn to the stored entity.
func (s *EntityStore) Update(ref EntityRef, fn func(e *Entity) error) error {
	if s == nil || int(ref) < 0 || int(ref) >= len(s.entities) {
		return fmt.Errorf("entity ref %d out of range", ref)
	}
	return fn(&s.entities[ref])
}

// Range calls fn for every entity in order and stops at the first error.
func (s *EntityStore) Range(fn func(ref EntityRef, e *Entity) error) error {
	if s == nil {
		return nil
	}
	for i := range s.entities {
		if err := fn(EntityRef(i), &s.entities[i]); err != nil {
			return err
		}
	}
	return nil
}

// Replace swaps the contents for entities and returns the previous list.
func (s *EntityStore) Replace(entities []Entity) []Entity {
	previous := s.entities
	s.entities = make([]Entity, len(entities))
	copy(s.entities, entities)
	if previous == nil {
		previous = []Entity{}
	}
	return previous
}
