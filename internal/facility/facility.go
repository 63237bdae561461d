package facility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lodgeline/internal/blob"
)

// ErrSetupIncomplete signals that the facilities questionnaire has not
// been completed for the hotel, so applicability cannot be derived.
var ErrSetupIncomplete = errors.New("facilities questionnaire incomplete; complete facility setup first")

// Profile is the per-hotel record of physical attributes.
type Profile struct {
	HotelID       string     `json:"hotelId"`
	HotelName     string     `json:"hotelName,omitempty"`
	Address       string     `json:"address,omitempty"`
	City          string     `json:"city,omitempty"`
	County        string     `json:"county,omitempty"`
	PostCode      string     `json:"postCode,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	ManagerName   string     `json:"managerName,omitempty"`
	ManagerPhone  string     `json:"managerPhone,omitempty"`
	ManagerEmail  string     `json:"managerEmail,omitempty"`
	SetupComplete bool       `json:"setupComplete"`
	LastUpdated   string     `json:"lastUpdated,omitempty"`
	UpdatedBy     string     `json:"updatedBy,omitempty"`
	Structural    Structural `json:"structural"`
	FireSafety    FireSafety `json:"fireSafety"`
	Mechanical    Mechanical `json:"mechanical"`
	Utilities     Utilities  `json:"utilities"`
}

type Structural struct {
	Floors         int  `json:"floors,omitempty"`
	Bedrooms       int  `json:"bedrooms,omitempty"`
	YearBuilt      int  `json:"yearBuilt,omitempty"`
	ListedBuilding bool `json:"listedBuilding,omitempty"`
}

type FireSafety struct {
	FireAlarmSystem   bool `json:"fireAlarmSystem,omitempty"`
	EmergencyLighting bool `json:"emergencyLighting,omitempty"`
	SprinklerSystem   bool `json:"sprinklerSystem,omitempty"`
	FireExtinguishers int  `json:"fireExtinguishers,omitempty"`
	FireDoors         int  `json:"fireDoors,omitempty"`
	DryRisers         int  `json:"dryRisers,omitempty"`
}

type Mechanical struct {
	Boilers         int  `json:"boilers,omitempty"`
	Elevators       int  `json:"elevators,omitempty"`
	GasAppliances   int  `json:"gasAppliances,omitempty"`
	Generators      int  `json:"generators,omitempty"`
	AirConditioning bool `json:"airConditioning,omitempty"`
	KitchenExtract  bool `json:"kitchenExtract,omitempty"`
}

type Utilities struct {
	GasSupply     bool `json:"gasSupply,omitempty"`
	SwimmingPool  bool `json:"swimmingPool,omitempty"`
	SpaFacilities bool `json:"spaFacilities,omitempty"`
	LaundryOnSite bool `json:"laundryOnSite,omitempty"`
}

// Key is the blob key for a hotel's facility profile.
func Key(hotelID string) string {
	return "hotels/facilities/" + hotelID + ".json"
}

// Load reads a hotel's profile. A missing profile is not an error: it
// yields the default empty profile with setupComplete=false.
func Load(ctx context.Context, store blob.Store, hotelID string) (Profile, error) {
	data, err := store.Get(ctx, Key(hotelID))
	if errors.Is(err, blob.ErrNotFound) {
		return Profile{HotelID: hotelID}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load facilities for %s: %w", hotelID, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse facilities for %s: %w", hotelID, err)
	}
	p.HotelID = hotelID
	return p, nil
}

// Save persists a profile, stamping the audit fields and marking setup
// complete the way the facilities questionnaire submit does.
func Save(ctx context.Context, store blob.Store, p Profile, updatedBy string, now time.Time) error {
	if p.HotelID == "" {
		return errors.New("hotelId is required")
	}
	p.LastUpdated = now.UTC().Format(time.RFC3339)
	p.UpdatedBy = updatedBy
	p.SetupComplete = true
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := store.Put(ctx, Key(p.HotelID), data); err != nil {
		return fmt.Errorf("save facilities for %s: %w", p.HotelID, err)
	}
	return nil
}
