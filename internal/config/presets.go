package config

import "sort"

var Presets = map[string]map[string]*Config{
	"bouncingball": {
		"default": {
			Model: "bouncingball", StopTime: 3, StepSize: 0.01,
		},
		"bouncy": {
			Model: "bouncingball", StopTime: 10, StepSize: 0.005,
			Params: map[string]float64{"e": 0.9, "h0": 2},
		},
		"dead": {
			Model: "bouncingball", StopTime: 3, StepSize: 0.01,
			Params: map[string]float64{"e": 0.3},
		},
		"moon": {
			Model: "bouncingball", StopTime: 10, StepSize: 0.01,
			Params: map[string]float64{"g": -1.62},
		},
	},
	"dahlquist": {
		"default": {
			Model: "dahlquist", StopTime: 10, StepSize: 0.1,
		},
		"stiff": {
			Model: "dahlquist", StopTime: 2, StepSize: 0.01,
			Params: map[string]float64{"k": 50},
		},
		"unstable": {
			Model: "dahlquist", StopTime: 2, StepSize: 0.1,
			Params: map[string]float64{"k": 25},
		},
	},
	"stair": {
		"default": {
			Model: "stair", StopTime: 20, StepSize: 0.25,
		},
		"offgrid": {
			Model: "stair", StopTime: 20, StepSize: 0.3,
		},
		"short": {
			Model: "stair", StopTime: 5, StepSize: 0.5,
			Params: map[string]float64{"period": 0.5, "limit": 100},
		},
	},
	"vanderpol": {
		"default": {
			Model: "vanderpol", StopTime: 20, StepSize: 0.01,
		},
		"relaxation": {
			Model: "vanderpol", StopTime: 50, StepSize: 0.001,
			Params: map[string]float64{"mu": 5},
		},
		"harmonic": {
			Model: "vanderpol", StopTime: 20, StepSize: 0.01,
			Params: map[string]float64{"mu": 0, "x0": 1},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	p, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	cfg := *p
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if p.Params != nil {
		cfg.Params = make(map[string]float64, len(p.Params))
		for k, v := range p.Params {
			cfg.Params[k] = v
		}
	}
	return &cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
