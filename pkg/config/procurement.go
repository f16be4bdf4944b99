package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMessageTemplate is the opening message sent to a supplier for a new request.
const DefaultMessageTemplate = "Hello, this is {{.TenantName}}. We would like to order {{.Quantity}} units of {{.ProductName}}. " +
	"Please reply with your price per unit, whether the item is available, and the delivery time in days. Thank you!"

// WeightsConfig is the default scoring weight set given to new tenants
type WeightsConfig struct {
	Price            float64 `yaml:"price"`
	Delivery         float64 `yaml:"delivery"`
	SupplierPriority float64 `yaml:"supplier_priority"`
	Reliability      float64 `yaml:"reliability"`
}

// ProcurementDefaults holds tenant-independent procurement defaults
type ProcurementDefaults struct {
	Weights         WeightsConfig `yaml:"weights"`
	DefaultUrgency  string        `yaml:"default_urgency"`
	MessageTemplate string        `yaml:"message_template"`
	BackfillQty     int           `yaml:"backfill_quantity"`
	Currency        string        `yaml:"currency"`
}

// DefaultProcurement returns the built-in procurement defaults
func DefaultProcurement() ProcurementDefaults {
	return ProcurementDefaults{
		Weights: WeightsConfig{
			Price:            0.4,
			Delivery:         0.3,
			SupplierPriority: 0.2,
			Reliability:      0.1,
		},
		DefaultUrgency:  "normal",
		MessageTemplate: DefaultMessageTemplate,
		Currency:        "ILS",
	}
}

// LoadProcurementDefaults reads a YAML defaults file. Keys missing from the file keep
// their built-in values.
func LoadProcurementDefaults(path string) (*ProcurementDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	defaults := DefaultProcurement()
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, err
	}

	w := defaults.Weights
	if w.Price < 0 || w.Delivery < 0 || w.SupplierPriority < 0 || w.Reliability < 0 {
		return nil, fmt.Errorf("scoring weights must be non-negative")
	}
	if defaults.BackfillQty < 0 {
		return nil, fmt.Errorf("backfill_quantity must not be negative, got %d", defaults.BackfillQty)
	}
	if defaults.MessageTemplate == "" {
		defaults.MessageTemplate = DefaultMessageTemplate
	}
	if defaults.DefaultUrgency == "" {
		defaults.DefaultUrgency = "normal"
	}

	return &defaults, nil
}
