package models

import (
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
)

const (
	// MaxHealth is the health of a newly planted tree.
	MaxHealth uint8 = 100

	ErrTypeUnknownTreeKind = "unknown-tree-kind"
)

// TreeKind is the species of a tree.
type TreeKind string

const (
	TreeKindBirch TreeKind = "birch"
	TreeKindOak   TreeKind = "oak"
)

// ParseTreeKind returns the tree kind with the given name.
func ParseTreeKind(s string) (TreeKind, error) {
	switch k := TreeKind(s); k {
	case TreeKindBirch, TreeKindOak:
		return k, nil
	default:
		return "", errors.New("unknown tree kind").
			WithType(ErrTypeUnknownTreeKind).
			WithTag("kind", s)
	}
}

// KindFromSeed picks a tree kind from a seed when none is given.
func KindFromSeed(seed uint64) TreeKind {
	if seed%2 == 0 {
		return TreeKindBirch
	}
	return TreeKindOak
}

// TreeIdentity is the host-side record of a tree. Only the seed influences
// how the tree grows.
type TreeIdentity struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Seed   uint64    `json:"seed"`
	Health uint8     `json:"health"`
	Kind   TreeKind  `json:"kind"`
}

// NewTreeIdentity returns a healthy tree with a random id.
func NewTreeIdentity(name string, seed uint64) TreeIdentity {
	t := TreeIdentity{
		ID:     uuid.New(),
		Name:   name,
		Seed:   seed,
		Health: MaxHealth,
		Kind:   KindFromSeed(seed),
	}
	if t.Name == "" {
		t.Name = fmt.Sprintf("tree-%d", seed)
	}

	instrumentCountTree(t.Kind)
	return t
}

func (t TreeIdentity) IsAlive() bool {
	return t.Health > 0
}

// Damage lowers the tree health, stopping at zero.
func (t *TreeIdentity) Damage(amount uint8) {
	if amount >= t.Health {
		t.Health = 0
		return
	}
	t.Health -= amount
}
