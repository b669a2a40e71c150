// Package entity implements the Component Store: an archetype-keyed,
// cache-friendly store of entity components built on top of
// github.com/mlange-42/ark.
package entity

import (
	"math/rand"

	"github.com/google/uuid"
)

// ID is a 128-bit, globally unique, never-reused entity identity. Backed by
// github.com/google/uuid.
type ID = uuid.UUID

// NewID allocates a fresh, random entity identity via uuid.New().
// Determinism note: World mints ids through DeterministicID with its seeded
// generator so that identical world_seed + identical call order reproduce
// identical ids; NewID is only used where no seeded generator is available
// (e.g. tests and ad-hoc tooling outside a tick).
func NewID() ID { return uuid.New() }

// DeterministicID derives a fresh id from a seeded RNG stream (e.g.
// genetics.EntityStream), so identical world_seed + identical call order
// reproduce identical ids across runs and thread counts.
func DeterministicID(rng *rand.Rand) ID {
	var b [16]byte
	rng.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	id, _ := uuid.FromBytes(b[:])
	return id
}

// LineageID names an evolutionary thread.
type LineageID uint64

// NoLineage is the zero value meaning "unassigned".
const NoLineage LineageID = 0

// Kind distinguishes organisms from food and other passive entities.
type Kind uint8

const (
	KindOrganism Kind = iota
	KindFood
)

// Identity is the transient birth record a Reproduce proposal resolves
// into: id and lineage are then carried forward on the child's Genotype
// component, but parentage and birth tick only matter at the moment the
// birth event is recorded, so they never need a permanent column of their
// own on the live entity.
type Identity struct {
	ID         ID
	Lineage    LineageID
	BirthTick  int64
	ParentA    ID
	ParentB    ID // zero UUID if asexual or no second parent
	HasParentB bool
	Kind       Kind
}
