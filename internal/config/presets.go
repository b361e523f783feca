package config

import "sort"

// Presets adjust the defaults for common situations.
var Presets = map[string]func(*Config){
	"competition": func(c *Config) {},
	"tuning": func(c *Config) {
		c.Lift.Debug = true
		c.MGL.Debug = true
		c.Lift.Ki, c.MGL.Ki = 0, 0
	},
	"gentle": func(c *Config) {
		c.Lift.Saturation = 80
		c.MGL.Saturation = 80
		c.Teleop.LiftRate = 1
		c.Teleop.MGLRate = 1.5
	},
	"bench": func(c *Config) {
		c.Serial.Port = "/dev/ttyACM0"
		c.Teleop.AutonButton = false
	},
}

// GetPreset returns the defaults with a preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
