package service

import (
	"time"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/pkg/config"
	"github.com/shopspring/decimal"
)

// ImpactCalculator derives impact metrics from a quantity moved. All
// constants come from config so tests can override them.
type ImpactCalculator struct {
	valuePerPound    decimal.Decimal
	kgToLbs          decimal.Decimal
	ozPerLb          decimal.Decimal
	unitWeightLbs    decimal.Decimal
	nearExpiryWindow time.Duration
}

// NewImpactCalculator creates a calculator from the impact configuration
func NewImpactCalculator(cfg config.ImpactConfig) *ImpactCalculator {
	return &ImpactCalculator{
		valuePerPound:    decimal.NewFromFloat(cfg.ValuePerPound),
		kgToLbs:          decimal.NewFromFloat(cfg.KgToLbs),
		ozPerLb:          decimal.NewFromFloat(cfg.OzPerLb),
		unitWeightLbs:    decimal.NewFromFloat(cfg.UnitWeightLbs),
		nearExpiryWindow: cfg.NearExpiryWindow,
	}
}

func (c *ImpactCalculator) pounds(qty float64, unit string) decimal.Decimal {
	q := decimal.NewFromFloat(qty)
	switch unit {
	case repository.UnitLbs:
		return q
	case repository.UnitKg:
		return q.Mul(c.kgToLbs)
	case repository.UnitOz:
		return q.Div(c.ozPerLb)
	default:
		return q.Mul(c.unitWeightLbs)
	}
}

// StandardizedWeight converts a quantity to pounds
func (c *ImpactCalculator) StandardizedWeight(qty float64, unit string) float64 {
	w, _ := c.pounds(qty, unit).Float64()
	return w
}

// EstimatedValue prices a weight in pounds, rounded to cents
func (c *ImpactCalculator) EstimatedValue(weight float64) float64 {
	v, _ := decimal.NewFromFloat(weight).Mul(c.valuePerPound).Round(2).Float64()
	return v
}

// PeopleServed is the household size of a hand-off, 1 when unknown, and 0
// when nobody received the stock.
func (c *ImpactCalculator) PeopleServed(toRecipient bool, familySize int) int {
	if !toRecipient {
		return 0
	}
	if familySize > 0 {
		return familySize
	}
	return 1
}

// WasteDiverted is true for stock received that expires between today and
// the end of the near-expiry window.
func (c *ImpactCalculator) WasteDiverted(action string, expiration *time.Time, now time.Time) bool {
	if action != repository.ActionAdded || expiration == nil {
		return false
	}
	today := startOfDay(now)
	return !expiration.Before(today) && !expiration.After(now.Add(c.nearExpiryWindow))
}

// Metrics computes every impact field for one change log entry
func (c *ImpactCalculator) Metrics(action string, qty float64, unit string, toRecipient bool, familySize int, expiration *time.Time, now time.Time) repository.ImpactMetrics {
	weight := c.StandardizedWeight(qty, unit)
	return repository.ImpactMetrics{
		StandardizedWeight: weight,
		EstimatedValue:     c.EstimatedValue(weight),
		PeopleServed:       c.PeopleServed(toRecipient, familySize),
		WasteDiverted:      c.WasteDiverted(action, expiration, now),
	}
}

// Convert expresses qty given in from in the unit to. Conversion only happens
// between weight units; mixing counted units with weights is rejected.
func (c *ImpactCalculator) Convert(qty float64, from, to string) (float64, bool) {
	if from == to {
		return qty, true
	}
	if from == repository.UnitUnits || to == repository.UnitUnits {
		return 0, false
	}

	lbs := c.pounds(qty, from)
	var out decimal.Decimal
	switch to {
	case repository.UnitKg:
		out = lbs.Div(c.kgToLbs)
	case repository.UnitOz:
		out = lbs.Mul(c.ozPerLb)
	default:
		out = lbs
	}
	f, _ := out.Round(6).Float64()
	return f, true
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
