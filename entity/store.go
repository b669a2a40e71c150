package entity

import (
	"github.com/mlange-42/ark/ecs"
)

// Store is the archetype-keyed component store for the seven live-entity
// components plus a separate lightweight Food archetype. It wraps an
// ecs.World with typed mappers/filters so callers never juggle raw
// component IDs.
type Store struct {
	World *ecs.World

	organismMapper *ecs.Map7[Position, Velocity, Metabolism, Health, Intel, Genotype, Bond]
	organismFilter *ecs.Filter7[Position, Velocity, Metabolism, Health, Intel, Genotype, Bond]

	posMap    *ecs.Map1[Position]
	velMap    *ecs.Map1[Velocity]
	metMap    *ecs.Map1[Metabolism]
	healthMap *ecs.Map1[Health]
	intelMap  *ecs.Map1[Intel]
	genoMap   *ecs.Map1[Genotype]
	bondMap   *ecs.Map1[Bond]

	foodMapper *ecs.Map2[Position, FoodNutrient]
	foodFilter *ecs.Filter2[Position, FoodNutrient]

	byID map[ID]ecs.Entity
}

// NewStore allocates a Store over a fresh ecs.World.
func NewStore() *Store {
	world := ecs.NewWorld()
	return &Store{
		World: world,

		organismMapper: ecs.NewMap7[Position, Velocity, Metabolism, Health, Intel, Genotype, Bond](world),
		organismFilter: ecs.NewFilter7[Position, Velocity, Metabolism, Health, Intel, Genotype, Bond](world),

		posMap:    ecs.NewMap1[Position](world),
		velMap:    ecs.NewMap1[Velocity](world),
		metMap:    ecs.NewMap1[Metabolism](world),
		healthMap: ecs.NewMap1[Health](world),
		intelMap:  ecs.NewMap1[Intel](world),
		genoMap:   ecs.NewMap1[Genotype](world),
		bondMap:   ecs.NewMap1[Bond](world),

		foodMapper: ecs.NewMap2[Position, FoodNutrient](world),
		foodFilter: ecs.NewFilter2[Position, FoodNutrient](world),

		byID: make(map[ID]ecs.Entity),
	}
}

// Insert spawns a new organism entity with the given initial component
// values and returns its ecs handle. geno.ID must already be set (callers
// mint it via entity.NewID or a seeded equivalent before assembling the
// Genotype); Insert indexes it so Resolve can find this entity later.
func (s *Store) Insert(pos Position, vel Velocity, met Metabolism, health Health, intel Intel, geno Genotype, bond Bond) ecs.Entity {
	e := s.organismMapper.NewEntity(&pos, &vel, &met, &health, &intel, &geno, &bond)
	s.byID[geno.ID] = e
	return e
}

// Resolve looks up the live ecs.Entity handle for an entity.ID, as carried
// by a Proposal's Source/Target or a Bond's Partner. Ok is false if the id
// is unknown or its entity has already despawned.
func (s *Store) Resolve(id ID) (e ecs.Entity, ok bool) {
	e, ok = s.byID[id]
	return e, ok
}

// InsertFood spawns a food entity.
func (s *Store) InsertFood(pos Position, nutrient FoodNutrient) ecs.Entity {
	return s.foodMapper.NewEntity(&pos, &nutrient)
}

// Despawn removes an organism entity from the store. Safe to call on an
// entity already removed this tick only if the caller tracks that itself;
// Ark does not allow double-remove.
func (s *Store) Despawn(e ecs.Entity) {
	if geno := s.genoMap.Get(e); geno != nil {
		delete(s.byID, geno.ID)
	}
	s.organismMapper.Remove(e)
}

// DespawnFood removes a food entity (e.g. on Eat).
func (s *Store) DespawnFood(e ecs.Entity) {
	s.foodMapper.Remove(e)
}

// Alive reports whether the entity handle still refers to a live entity.
func (s *Store) Alive(e ecs.Entity) bool {
	return s.World.Alive(e)
}

// Position returns a pointer to the live Position component for an entity.
func (s *Store) Position(e ecs.Entity) *Position { return s.posMap.Get(e) }

// Velocity returns a pointer to the live Velocity component for an entity.
func (s *Store) Velocity(e ecs.Entity) *Velocity { return s.velMap.Get(e) }

// Metabolism returns a pointer to the live Metabolism component for an entity.
func (s *Store) Metabolism(e ecs.Entity) *Metabolism { return s.metMap.Get(e) }

// HealthOf returns a pointer to the live Health component for an entity.
func (s *Store) HealthOf(e ecs.Entity) *Health { return s.healthMap.Get(e) }

// IntelOf returns a pointer to the live Intel component for an entity.
func (s *Store) IntelOf(e ecs.Entity) *Intel { return s.intelMap.Get(e) }

// GenotypeOf returns a pointer to the live Genotype component for an entity.
func (s *Store) GenotypeOf(e ecs.Entity) *Genotype { return s.genoMap.Get(e) }

// BondOf returns a pointer to the live Bond component for an entity.
func (s *Store) BondOf(e ecs.Entity) *Bond { return s.bondMap.Get(e) }

// OrganismRow is a single entity's full row, yielded during iteration.
type OrganismRow struct {
	Entity     ecs.Entity
	Position   *Position
	Velocity   *Velocity
	Metabolism *Metabolism
	Health     *Health
	Intel      *Intel
	Genotype   *Genotype
	Bond       *Bond
}

// Each calls fn once per live organism entity, in archetype-storage order.
// fn must not spawn or despawn entities mid-iteration.
func (s *Store) Each(fn func(OrganismRow)) {
	q := s.organismFilter.Query()
	for q.Next() {
		pos, vel, met, health, intel, geno, bond := q.Get()
		fn(OrganismRow{
			Entity: q.Entity(), Position: pos, Velocity: vel, Metabolism: met,
			Health: health, Intel: intel, Genotype: geno, Bond: bond,
		})
	}
}

// SnapshotPositions extracts a dense, read-only slice of (entity, position)
// pairs, consumed by the Spatial Hash rebuild and Phase A sensing so
// perception never touches the live archetype storage directly.
func (s *Store) SnapshotPositions(scratch []PositionRecord) []PositionRecord {
	scratch = scratch[:0]
	q := s.organismFilter.Query()
	for q.Next() {
		pos, _, _, _, _, geno, _ := q.Get()
		scratch = append(scratch, PositionRecord{
			Entity: q.Entity(), ID: geno.ID, Lineage: geno.Lineage, X: pos.X, Y: pos.Y,
		})
	}
	return scratch
}

// PositionRecord is one entity's position, decoupled from live component
// storage for safe concurrent reads during Phase A. ID and Lineage are
// carried alongside the ecs.Entity handle so callers (the Spatial Hash
// rebuild) can build spatial.Point values without a second lookup.
type PositionRecord struct {
	Entity  ecs.Entity
	ID      ID
	Lineage LineageID
	X, Y    float64
}

// EachFood calls fn once per live food entity.
func (s *Store) EachFood(fn func(e ecs.Entity, pos *Position, nutrient *FoodNutrient)) {
	q := s.foodFilter.Query()
	for q.Next() {
		pos, nutrient := q.Get()
		fn(q.Entity(), pos, nutrient)
	}
}

// Count returns the current number of live organism entities.
func (s *Store) Count() int {
	n := 0
	q := s.organismFilter.Query()
	for q.Next() {
		n++
	}
	return n
}

// FoodCount returns the current number of live food entities.
func (s *Store) FoodCount() int {
	n := 0
	q := s.foodFilter.Query()
	for q.Next() {
		n++
	}
	return n
}
