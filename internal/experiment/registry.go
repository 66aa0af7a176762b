package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/fmusim/internal/fmi"
	"github.com/san-kum/fmusim/internal/models"
)

// Model is a backend whose parameters can be set before instantiation.
type Model interface {
	fmi.Model
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Registry struct {
	models map[string]func() Model
}

// NewRegistry returns a registry holding the built-in models.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func() Model)}

	r.Register("bouncingball", func() Model { return models.NewBouncingBall() })
	r.Register("dahlquist", func() Model { return models.NewDahlquist() })
	r.Register("stair", func() Model { return models.NewStair() })
	r.Register("vanderpol", func() Model { return models.NewVanDerPol() })

	return r
}

// Register adds or replaces a model factory.
func (r *Registry) Register(name string, fn func() Model) {
	r.models[name] = fn
}

// GetModel returns a fresh model with params applied.
func (r *Registry) GetModel(name string, params map[string]float64) (Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	m := fn()

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := m.SetParam(k, params[k]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
