package kizuna

import "reflect"

// SystemRegistered is published after a system joins a SystemManager.
type SystemRegistered struct {
	Type reflect.Type
}

// SystemRemoved is published after a system leaves a SystemManager. The
// manager's reference is already released.
type SystemRemoved struct {
	Type reflect.Type
}

// EntityRemoved is published after an entity is removed from a Scene and its
// shared components were released.
type EntityRemoved struct {
	Entity Entity
	// Released is the number of shared components the entity held.
	Released int
}
