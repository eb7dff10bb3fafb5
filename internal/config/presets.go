package config

var Presets = map[string]*Config{
	"falling-point": {
		Scenario: "falling-point", Integrator: "rk4", Dt: 0.01, Duration: 2.0, Runs: 1,
		Gravity:   Vec{Y: -9.81},
		Points:    []PointConfig{{Mass: 1, Y: 1}},
		Witnesses: []WitnessConfig{{Point: 0, Height: 0.5}},
	},
	"thrown-ball": {
		Scenario: "thrown-ball", Integrator: "rk4", Dt: 0.005, Duration: 3.0, Runs: 1,
		Gravity:   Vec{Y: -9.81},
		Wind:      Vec{X: 0.5},
		Points:    []PointConfig{{Mass: 0.5, Y: 0, VX: 3, VY: 8}},
		Witnesses: []WitnessConfig{{Point: 0, Height: 0}},
	},
	"rod-pair": {
		Scenario: "rod-pair", Integrator: "rk4", Dt: 0.005, Duration: 5.0, Runs: 1,
		Gravity: Vec{Y: -9.81},
		Points: []PointConfig{
			{Mass: 1, X: 0, Y: 1, VX: 1},
			{Mass: 2, X: 0, Y: 0},
		},
		Rods: []RodConfig{{A: 0, B: 1, Length: 1}},
	},
	"ensemble-spread": {
		Scenario: "ensemble-spread", Integrator: "euler", Dt: 0.001, Duration: 1.0, Runs: 8,
		Gravity:   Vec{Y: -9.81},
		Points:    []PointConfig{{Mass: 1, Y: 2}},
		Witnesses: []WitnessConfig{{Point: 0, Height: 1}},
	},
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
