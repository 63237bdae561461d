package facility

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lodgeline/internal/catalog"
)

// Condition decides whether a task applies to a hotel. Exactly one of
// Flag or Count names a profile attribute; a Count condition holds when
// the attribute is at least Min (1 when unset).
type Condition struct {
	Flag  string `yaml:"flag,omitempty"`
	Count string `yaml:"count,omitempty"`
	Min   int    `yaml:"min,omitempty"`
}

// ApplicableTask is a catalog rule resolved for one hotel.
type ApplicableTask struct {
	catalog.Rule
	HotelID    string `json:"hotel_id"`
	Applicable bool   `json:"applicable"`
}

// Resolver filters catalog tasks by a hotel's facility profile. Task
// ids absent from the condition table are always applicable: baseline
// obligations (fire risk assessment, legionella, EICR, PAT) bind every
// hotel regardless of its facilities.
type Resolver struct {
	conditions map[string]Condition
}

// NewResolver returns a resolver with the built-in condition table.
func NewResolver() *Resolver {
	return &Resolver{conditions: defaultConditions}
}

// NewResolverFromFile loads a condition table from YAML so new rules
// do not require code changes.
func NewResolverFromFile(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read applicability rules %s: %w", path, err)
	}
	var conds map[string]Condition
	if err := yaml.Unmarshal(data, &conds); err != nil {
		return nil, fmt.Errorf("parse applicability rules: %w", err)
	}
	for id, c := range conds {
		if c.Flag == "" && c.Count == "" {
			return nil, fmt.Errorf("applicability rule %s names no attribute", id)
		}
	}
	return &Resolver{conditions: conds}, nil
}

// ApplicableTasks filters the catalog for a hotel. It fails with
// ErrSetupIncomplete unless the facilities questionnaire was completed;
// a partial answer set would misclassify tasks.
func (r *Resolver) ApplicableTasks(p Profile, c catalog.Catalog) ([]ApplicableTask, error) {
	if !p.SetupComplete {
		return nil, ErrSetupIncomplete
	}
	var out []ApplicableTask
	for _, rule := range c.Rules() {
		if !r.applies(rule.TaskID, p) {
			continue
		}
		out = append(out, ApplicableTask{Rule: rule, HotelID: p.HotelID, Applicable: true})
	}
	return out, nil
}

func (r *Resolver) applies(taskID string, p Profile) bool {
	cond, ok := r.conditions[taskID]
	if !ok {
		return true
	}
	if cond.Flag != "" {
		v, known := profileFlags(p)[cond.Flag]
		if !known {
			// Unknown attribute names fail open, matching the
			// default-applicable rule for unlisted tasks.
			return true
		}
		return v
	}
	if cond.Count != "" {
		v, known := profileCounts(p)[cond.Count]
		if !known {
			return true
		}
		min := cond.Min
		if min == 0 {
			min = 1
		}
		return v >= min
	}
	return true
}

func profileFlags(p Profile) map[string]bool {
	return map[string]bool{
		"fireSafety.fireAlarmSystem":   p.FireSafety.FireAlarmSystem,
		"fireSafety.emergencyLighting": p.FireSafety.EmergencyLighting,
		"fireSafety.sprinklerSystem":   p.FireSafety.SprinklerSystem,
		"mechanical.airConditioning":   p.Mechanical.AirConditioning,
		"mechanical.kitchenExtract":    p.Mechanical.KitchenExtract,
		"utilities.gasSupply":          p.Utilities.GasSupply,
		"utilities.swimmingPool":       p.Utilities.SwimmingPool,
		"utilities.spaFacilities":      p.Utilities.SpaFacilities,
		"utilities.laundryOnSite":      p.Utilities.LaundryOnSite,
		"structural.listedBuilding":    p.Structural.ListedBuilding,
	}
}

func profileCounts(p Profile) map[string]int {
	return map[string]int{
		"fireSafety.fireExtinguishers": p.FireSafety.FireExtinguishers,
		"fireSafety.fireDoors":         p.FireSafety.FireDoors,
		"fireSafety.dryRisers":         p.FireSafety.DryRisers,
		"mechanical.boilers":           p.Mechanical.Boilers,
		"mechanical.elevators":         p.Mechanical.Elevators,
		"mechanical.gasAppliances":     p.Mechanical.GasAppliances,
		"mechanical.generators":        p.Mechanical.Generators,
		"structural.bedrooms":          p.Structural.Bedrooms,
		"structural.floors":            p.Structural.Floors,
	}
}

var defaultConditions = map[string]Condition{
	"fire_alarm_service_certificate": {Flag: "fireSafety.fireAlarmSystem"},
	"emergency_lighting_certificate": {Flag: "fireSafety.emergencyLighting"},
	"sprinkler_system_service":       {Flag: "fireSafety.sprinklerSystem"},
	"fire_extinguisher_service":      {Count: "fireSafety.fireExtinguishers"},
	"fire_door_inspection":           {Count: "fireSafety.fireDoors"},
	"boiler_service":                 {Count: "mechanical.boilers"},
	"lift_service_certificate":       {Count: "mechanical.elevators"},
	"generator_service":              {Count: "mechanical.generators"},
	"gas_safety_certificate":         {Flag: "utilities.gasSupply"},
	"kitchen_extract_cleaning":       {Flag: "mechanical.kitchenExtract"},
	"air_conditioning_inspection":    {Flag: "mechanical.airConditioning"},
	"pool_water_testing":             {Flag: "utilities.swimmingPool"},
	"spa_water_testing":              {Flag: "utilities.spaFacilities"},
}
