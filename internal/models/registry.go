// Package models holds the in-memory registry of available model IDs and
// their default tool configurations, loaded from a YAML catalog at
// startup. The registry is read-only during a scheduler tick.
package models

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Model describes an available chat model.
type Model struct {
	ID   string    `yaml:"id" json:"id"`
	Name string    `yaml:"name,omitempty" json:"name,omitempty"`
	Info ModelInfo `yaml:"info" json:"info"`
}

// ModelInfo mirrors the backend's model info envelope.
type ModelInfo struct {
	Meta ModelMeta `yaml:"meta" json:"meta"`
}

// ModelMeta carries the model's default tool list.
type ModelMeta struct {
	ToolIDs []string `yaml:"toolIds" json:"toolIds,omitempty"`
}

// Registry is a read-only map of model ID to model, preserving catalog
// order for deterministic fallback.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

type catalog struct {
	Models []Model `yaml:"models"`
}

// LoadFile replaces the registry contents with the models declared in the
// given YAML catalog.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model catalog: %w", err)
	}
	var cat catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return fmt.Errorf("parse model catalog: %w", err)
	}

	models := make(map[string]Model, len(cat.Models))
	order := make([]string, 0, len(cat.Models))
	for _, m := range cat.Models {
		if m.ID == "" {
			continue
		}
		if _, dup := models[m.ID]; dup {
			continue
		}
		models[m.ID] = m
		order = append(order, m.ID)
	}

	r.mu.Lock()
	r.models = models
	r.order = order
	r.mu.Unlock()
	return nil
}

// Set registers a model, appending it to the fallback order if new.
func (r *Registry) Set(m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[m.ID]; !exists {
		r.order = append(r.order, m.ID)
	}
	r.models[m.ID] = m
}

// Get returns the model for id.
func (r *Registry) Get(id string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// Has reports whether id is a known model.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// First returns the first model in catalog order, used as the last-resort
// fallback when neither the job's model nor the user's defaults resolve.
func (r *Registry) First() (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return Model{}, false
	}
	return r.models[r.order[0]], true
}

// IDs returns all model IDs in catalog order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// DefaultToolIDs returns the default tool list configured for a model, or
// nil when the model is unknown or has none.
func (r *Registry) DefaultToolIDs(id string) []string {
	m, ok := r.Get(id)
	if !ok {
		return nil
	}
	return m.Info.Meta.ToolIDs
}
