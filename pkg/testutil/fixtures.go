package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaterialFixture represents test material data
type MaterialFixture struct {
	ID               string
	DisplayName      string
	Shape            string
	DiameterMM       decimal.Decimal
	DensityGCM3      decimal.Decimal
	PartNumber       string
	EquivalenceGroup string
	IsActive         bool
	CreatedAt        time.Time
}

// LotFixture represents test lot data
type LotFixture struct {
	ID               string
	LotNumber        string
	MaterialID       string
	ReceivedDate     time.Time
	ReceivedPieces   int
	UnitPriceCents   int64
	InspectionStatus string
	CreatedAt        time.Time
}

// ItemFixture represents test item data
type ItemFixture struct {
	ID              string
	Identifier      string
	LotID           string
	LengthMM        decimal.Decimal
	CurrentPieces   int
	CurrentWeightKg decimal.Decimal
	LocationID      *string
	CreatedAt       time.Time
}

// LocationFixture represents test storage location data
type LocationFixture struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Material creates a material fixture with defaults. The default is a round
// 20mm carbon steel bar at density 7.85 g/cm3.
func (f *FixtureFactory) Material(opts ...func(*MaterialFixture)) MaterialFixture {
	seq := f.nextSeq()

	mat := MaterialFixture{
		ID:          uuid.New().String(),
		DisplayName: fmt.Sprintf("S45C Round 20mm #%d", seq),
		Shape:       "round",
		DiameterMM:  decimal.NewFromInt(20),
		DensityGCM3: decimal.RequireFromString("7.85"),
		PartNumber:  fmt.Sprintf("PN-%04d", seq),
		IsActive:    true,
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(&mat)
	}

	return mat
}

// WithDisplayName sets the material display name
func WithDisplayName(name string) func(*MaterialFixture) {
	return func(m *MaterialFixture) {
		m.DisplayName = name
	}
}

// WithShape sets the material cross-section shape and size
func WithShape(shape string, diameterMM string) func(*MaterialFixture) {
	return func(m *MaterialFixture) {
		m.Shape = shape
		m.DiameterMM = decimal.RequireFromString(diameterMM)
	}
}

// WithDensity sets the material density in g/cm3
func WithDensity(density string) func(*MaterialFixture) {
	return func(m *MaterialFixture) {
		m.DensityGCM3 = decimal.RequireFromString(density)
	}
}

// WithEquivalenceGroup sets the material equivalence group
func WithEquivalenceGroup(group string) func(*MaterialFixture) {
	return func(m *MaterialFixture) {
		m.EquivalenceGroup = group
	}
}

// Lot creates a lot fixture with defaults
func (f *FixtureFactory) Lot(materialID string, opts ...func(*LotFixture)) LotFixture {
	seq := f.nextSeq()

	lot := LotFixture{
		ID:               uuid.New().String(),
		LotNumber:        fmt.Sprintf("LOT-20260115-%04d", seq),
		MaterialID:       materialID,
		ReceivedDate:     time.Now(),
		ReceivedPieces:   10,
		UnitPriceCents:   125000,
		InspectionStatus: "pending",
		CreatedAt:        time.Now(),
	}

	for _, opt := range opts {
		opt(&lot)
	}

	return lot
}

// WithLotNumber sets the lot number
func WithLotNumber(number string) func(*LotFixture) {
	return func(l *LotFixture) {
		l.LotNumber = number
	}
}

// WithReceivedPieces sets the received piece count
func WithReceivedPieces(pieces int) func(*LotFixture) {
	return func(l *LotFixture) {
		l.ReceivedPieces = pieces
	}
}

// WithInspectionStatus sets the lot inspection status
func WithInspectionStatus(status string) func(*LotFixture) {
	return func(l *LotFixture) {
		l.InspectionStatus = status
	}
}

// Item creates an item fixture with defaults. The default is a 2500mm bar
// with 10 pieces on hand.
func (f *FixtureFactory) Item(lotID string, opts ...func(*ItemFixture)) ItemFixture {
	seq := f.nextSeq()

	item := ItemFixture{
		ID:              uuid.New().String(),
		Identifier:      fmt.Sprintf("BAR-%08d", seq),
		LotID:           lotID,
		LengthMM:        decimal.NewFromInt(2500),
		CurrentPieces:   10,
		CurrentWeightKg: decimal.RequireFromString("61.654"),
		CreatedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithLength sets the item bar length in mm
func WithLength(lengthMM string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.LengthMM = decimal.RequireFromString(lengthMM)
	}
}

// WithStock sets the item's current pieces and weight
func WithStock(pieces int, weightKg string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.CurrentPieces = pieces
		i.CurrentWeightKg = decimal.RequireFromString(weightKg)
	}
}

// WithLocation sets the item's storage location
func WithLocation(locationID string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.LocationID = &locationID
	}
}

// Location creates a storage location fixture with defaults
func (f *FixtureFactory) Location(opts ...func(*LocationFixture)) LocationFixture {
	seq := f.nextSeq()

	loc := LocationFixture{
		ID:          uuid.New().String(),
		Name:        fmt.Sprintf("Rack %c-%d", 'A'+rune((seq-1)%26), seq),
		Description: "Test storage rack",
		IsActive:    true,
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(&loc)
	}

	return loc
}

// WithLocationName sets the location name
func WithLocationName(name string) func(*LocationFixture) {
	return func(l *LocationFixture) {
		l.Name = name
	}
}
