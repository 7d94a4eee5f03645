package conversion

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/barstock-backend/pkg/errors"
)

func roundBar(diameter, length, density string) Geometry {
	return Geometry{
		Shape:       ShapeRound,
		DiameterMM:  decimal.RequireFromString(diameter),
		LengthMM:    decimal.RequireFromString(length),
		DensityGCM3: decimal.RequireFromString(density),
	}
}

func TestUnitWeightKg_RoundBar(t *testing.T) {
	// 20mm round x 2500mm carbon steel: pi * 10^2 * 2500 / 1000 cm3 * 7.85 / 1000
	g := roundBar("20", "2500", "7.85")

	unit, err := UnitWeightKg(g)
	require.NoError(t, err)

	assert.Equal(t, "6.165", unit.Round(3).String())
}

func TestUnitWeightKg_HexBar(t *testing.T) {
	// 17mm across-flats hex x 3000mm: (sqrt(3)/2) * 17^2 * 3000 / 1e6 * 7.85
	g := Geometry{
		Shape:       ShapeHex,
		DiameterMM:  decimal.NewFromInt(17),
		LengthMM:    decimal.NewFromInt(3000),
		DensityGCM3: decimal.RequireFromString("7.85"),
	}

	unit, err := UnitWeightKg(g)
	require.NoError(t, err)

	assert.Equal(t, "5.894", unit.Round(3).String())
}

func TestUnitWeightKg_SquareBar(t *testing.T) {
	// 25mm square x 2000mm: 625 * 2000 / 1e6 * 7.85
	g := Geometry{
		Shape:       ShapeSquare,
		DiameterMM:  decimal.NewFromInt(25),
		LengthMM:    decimal.NewFromInt(2000),
		DensityGCM3: decimal.RequireFromString("7.85"),
	}

	unit, err := UnitWeightKg(g)
	require.NoError(t, err)

	assert.Equal(t, "9.813", unit.Round(3).String())
}

func TestPiecesToWeightKg(t *testing.T) {
	g := roundBar("20", "2500", "7.85")

	weight, err := PiecesToWeightKg(g, 3)
	require.NoError(t, err)
	assert.Equal(t, "18.496", weight.String())

	weight, err = PiecesToWeightKg(g, 10)
	require.NoError(t, err)
	assert.Equal(t, "61.654", weight.String())

	weight, err = PiecesToWeightKg(g, 0)
	require.NoError(t, err)
	assert.True(t, weight.IsZero())
}

func TestWeightToPieces_FloorsPartialBars(t *testing.T) {
	g := roundBar("20", "2500", "7.85")

	// 2.9 bars worth of weight yields 2 whole pieces
	unit, err := UnitWeightKg(g)
	require.NoError(t, err)
	weight := unit.Mul(decimal.RequireFromString("2.9"))

	pieces, remainder, err := WeightToPieces(g, weight)
	require.NoError(t, err)
	assert.Equal(t, 2, pieces)
	assert.Equal(t, unit.Mul(decimal.RequireFromString("0.9")).Round(3).String(), remainder.String())
}

func TestWeightToPieces_ExactMultiple(t *testing.T) {
	g := roundBar("20", "2500", "7.85")

	unit, err := UnitWeightKg(g)
	require.NoError(t, err)

	pieces, remainder, err := WeightToPieces(g, unit.Mul(decimal.NewFromInt(5)))
	require.NoError(t, err)
	assert.Equal(t, 5, pieces)
	assert.True(t, remainder.IsZero(), "remainder was %s", remainder)
}

func TestWeightToPieces_StoredTotalKeepsFullCount(t *testing.T) {
	g := roundBar("20", "2500", "7.85")

	// 3 bars weigh 18.4961... kg and are stored as 18.496; issuing the
	// stored total must still count all 3 bars
	stored, err := PiecesToWeightKg(g, 3)
	require.NoError(t, err)
	require.Equal(t, "18.496", stored.String())

	pieces, remainder, err := WeightToPieces(g, stored)
	require.NoError(t, err)
	assert.Equal(t, 3, pieces)
	assert.True(t, remainder.IsZero(), "remainder was %s", remainder)
}

func TestWeightToPieces_ZeroWeight(t *testing.T) {
	g := roundBar("20", "2500", "7.85")

	pieces, remainder, err := WeightToPieces(g, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, 0, pieces)
	assert.True(t, remainder.IsZero())
}

func TestWeightToPieces_NegativeWeight(t *testing.T) {
	g := roundBar("20", "2500", "7.85")

	_, _, err := WeightToPieces(g, decimal.RequireFromString("-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidGeometry))
}

func TestValidate_RejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name string
		g    Geometry
	}{
		{"unknown shape", Geometry{Shape: "oval", DiameterMM: decimal.NewFromInt(20), LengthMM: decimal.NewFromInt(1000), DensityGCM3: decimal.RequireFromString("7.85")}},
		{"zero diameter", roundBar("0", "1000", "7.85")},
		{"negative diameter", roundBar("-5", "1000", "7.85")},
		{"zero length", roundBar("20", "0", "7.85")},
		{"zero density", roundBar("20", "1000", "0")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.g.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidGeometry))
		})
	}
}

// Round-tripping pieces -> weight -> pieces must never lose a bar for
// any realistic geometry, including through the 3 dp rounding the
// stored totals carry.
func TestRoundTrip_PiecesSurviveConversion(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	shapes := []string{ShapeRound, ShapeHex, ShapeSquare}
	granularity := decimal.RequireFromString("0.001")

	for i := 0; i < 200; i++ {
		g := Geometry{
			Shape:       shapes[rng.Intn(len(shapes))],
			DiameterMM:  decimal.NewFromFloat(5 + rng.Float64()*95),
			LengthMM:    decimal.NewFromFloat(500 + rng.Float64()*5500),
			DensityGCM3: decimal.NewFromFloat(2.5 + rng.Float64()*6),
		}
		pieces := 1 + rng.Intn(500)

		weight, err := PiecesToWeightKg(g, pieces)
		require.NoError(t, err)

		got, remainder, err := WeightToPieces(g, weight)
		require.NoError(t, err)
		assert.Equal(t, pieces, got, "geometry %+v", g)
		assert.True(t, remainder.LessThanOrEqual(granularity),
			"remainder %s for geometry %+v", remainder, g)
	}
}
