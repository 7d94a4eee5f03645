// Package conversion implements the piece/weight conversion engine for
// bar stock. Weight is derived from cross-section geometry, bar length,
// and material density. All dimensions are millimeters, densities are
// g/cm3, and weights are kilograms rounded to three decimal places.
package conversion

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/pkg/errors"
)

// Cross-section shapes
const (
	ShapeRound  = "round"
	ShapeHex    = "hex"
	ShapeSquare = "square"
)

// WeightScale is the number of decimal places stored for kilogram values
const WeightScale = 3

var (
	pi        = decimal.NewFromFloat(math.Pi)
	sqrt3Half = decimal.NewFromFloat(math.Sqrt(3) / 2)
	thousand  = decimal.NewFromInt(1000)
	one       = decimal.NewFromInt(1)
)

// Geometry describes a bar's cross-section and length.
// DiameterMM is the diameter for round bars and the across-flats
// dimension for hex and square bars.
type Geometry struct {
	Shape       string
	DiameterMM  decimal.Decimal
	LengthMM    decimal.Decimal
	DensityGCM3 decimal.Decimal
}

// Validate checks the geometry for a known shape and positive dimensions
func (g Geometry) Validate() error {
	switch g.Shape {
	case ShapeRound, ShapeHex, ShapeSquare:
	default:
		return errors.InvalidGeometry("shape", "must be one of: round, hex, square")
	}
	if !g.DiameterMM.IsPositive() {
		return errors.InvalidGeometry("diameter_mm", "must be greater than 0")
	}
	if !g.LengthMM.IsPositive() {
		return errors.InvalidGeometry("length_mm", "must be greater than 0")
	}
	if !g.DensityGCM3.IsPositive() {
		return errors.InvalidGeometry("density_gcm3", "must be greater than 0")
	}
	return nil
}

// crossSectionMM2 returns the cross-section area in mm2
func (g Geometry) crossSectionMM2() decimal.Decimal {
	switch g.Shape {
	case ShapeRound:
		r := g.DiameterMM.Div(decimal.NewFromInt(2))
		return pi.Mul(r).Mul(r)
	case ShapeHex:
		return sqrt3Half.Mul(g.DiameterMM).Mul(g.DiameterMM)
	default: // square
		return g.DiameterMM.Mul(g.DiameterMM)
	}
}

// UnitWeightKg returns the weight of a single bar in kilograms at full
// precision. Callers round for display and storage; the ledger keeps
// the unrounded value during piece derivation so floor division is not
// skewed by intermediate rounding.
func UnitWeightKg(g Geometry) (decimal.Decimal, error) {
	if err := g.Validate(); err != nil {
		return decimal.Zero, err
	}

	// mm2 * mm = mm3, /1000 = cm3, * g/cm3 = g, /1000 = kg
	volumeCM3 := g.crossSectionMM2().Mul(g.LengthMM).Div(thousand)
	return volumeCM3.Mul(g.DensityGCM3).Div(thousand), nil
}

// PiecesToWeightKg converts a piece count to total weight in kilograms,
// rounded to three decimal places
func PiecesToWeightKg(g Geometry, pieces int) (decimal.Decimal, error) {
	unit, err := UnitWeightKg(g)
	if err != nil {
		return decimal.Zero, err
	}
	return unit.Mul(decimal.NewFromInt(int64(pieces))).Round(WeightScale), nil
}

// WeightToPieces converts a weight in kilograms to a whole piece count.
// Partial bars always round DOWN: issuing 2.9 bars worth of weight
// yields 2 pieces, and the remainder is reported separately so callers
// can surface the scrap weight. Stored weights carry three decimal
// places, so a total that storage rounding shaved below an exact
// multiple still counts as the full multiple it was derived from.
func WeightToPieces(g Geometry, weightKg decimal.Decimal) (pieces int, remainderKg decimal.Decimal, err error) {
	unit, err := UnitWeightKg(g)
	if err != nil {
		return 0, decimal.Zero, err
	}
	if weightKg.IsNegative() {
		return 0, decimal.Zero, errors.InvalidGeometry("weight_kg", "must not be negative")
	}

	whole := weightKg.Div(unit).Floor()
	if unit.Mul(whole.Add(one)).Round(WeightScale).LessThanOrEqual(weightKg) {
		whole = whole.Add(one)
	}
	pieces = int(whole.IntPart())

	remainderKg = weightKg.Sub(unit.Mul(whole))
	if remainderKg.IsNegative() {
		remainderKg = decimal.Zero
	}
	return pieces, remainderKg.Round(WeightScale), nil
}
