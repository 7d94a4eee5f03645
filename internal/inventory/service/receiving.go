package service

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/internal/inventory/conversion"
	"github.com/barstock/barstock-backend/internal/inventory/events"
	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/actor"
	"github.com/barstock/barstock-backend/pkg/config"
	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/logger"
	"github.com/barstock/barstock-backend/pkg/messaging"
)

const (
	lotNumberAttempts  = 5
	identifierAttempts = 10
)

var identifierEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ReceivingService drives the receiving workflow: material resolution,
// lot and item creation, and the seeding `in` movements. Receiving is
// the sole creator of items, and every created item gets its opening
// stock through the ledger rather than around it.
type ReceivingService struct {
	db        *database.DB
	catalog   *CatalogService
	lots      *repository.LotRepository
	items     *repository.ItemRepository
	movements *repository.MovementRepository
	orders    *repository.PurchaseOrderRepository
	audit     *repository.AuditRepository
	events    *events.Publisher
	cfg       config.InventoryConfig
	logger    *logger.Logger

	// newIdentifier produces identifier suffixes; tests swap it in to
	// force collisions
	newIdentifier func() string
}

// NewReceivingService creates a new receiving service
func NewReceivingService(db *database.DB, catalog *CatalogService, lots *repository.LotRepository, items *repository.ItemRepository, movements *repository.MovementRepository, orders *repository.PurchaseOrderRepository, audit *repository.AuditRepository, pub *events.Publisher, cfg config.InventoryConfig, log *logger.Logger) *ReceivingService {
	return &ReceivingService{
		db:            db,
		catalog:       catalog,
		lots:          lots,
		items:         items,
		movements:     movements,
		orders:        orders,
		audit:         audit,
		events:        pub,
		cfg:           cfg,
		logger:        log.WithComponent("receiving"),
		newIdentifier: randomIdentifierSuffix,
	}
}

// ItemSpec describes one item to create from a receiving: bars of one
// length and their count
type ItemSpec struct {
	LengthMM decimal.Decimal
	Pieces   int
}

// ConfirmReceivingInput is the structured receiving request
type ConfirmReceivingInput struct {
	PurchaseOrderItemID *string
	Material            MaterialSpec
	LotNumber           *string
	ReceivedDate        time.Time
	UnitPriceCents      *int64
	Items               []ItemSpec
}

func (in *ConfirmReceivingInput) validate() error {
	details := map[string]string{}
	if len(in.Items) == 0 {
		details["items"] = "at least one item is required"
	}
	for i, spec := range in.Items {
		if spec.Pieces <= 0 {
			details[fmt.Sprintf("items[%d].pieces", i)] = "must be greater than 0"
		}
		if !spec.LengthMM.IsPositive() {
			details[fmt.Sprintf("items[%d].length_mm", i)] = "must be greater than 0"
		}
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// ConfirmReceiving resolves the material, creates (or re-confirms) the
// lot with its items, and seeds each item's stock with an `in`
// movement. Everything commits in one transaction: a lot can never
// exist with an item that has no seeding movement. An explicit lot
// number that belongs to a different receiving fails with DuplicateLot
// rather than editing that receiving in place.
func (s *ReceivingService) ConfirmReceiving(ctx context.Context, input ConfirmReceivingInput) (*repository.Lot, []*repository.Item, error) {
	if err := input.validate(); err != nil {
		return nil, nil, err
	}
	if input.ReceivedDate.IsZero() {
		input.ReceivedDate = time.Now()
	}

	mat, err := s.catalog.ResolveOrCreate(ctx, input.Material)
	if err != nil {
		return nil, nil, err
	}

	if input.LotNumber != nil {
		existing, err := s.lots.GetByLotNumber(ctx, *input.LotNumber)
		if err == nil {
			if !sameReceiving(existing, mat, input) {
				return nil, nil, errors.DuplicateLot(*input.LotNumber)
			}
			return s.reconfirm(ctx, existing, mat, input)
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, nil, err
		}
	}

	return s.receive(ctx, mat, input)
}

// sameReceiving reports whether a confirmation carrying an explicit lot
// number targets the receiving that created the lot, as opposed to an
// unrelated receiving reusing the number. Referencing the same purchase
// order item is authoritative; receipts without one must at least agree
// on the material.
func sameReceiving(lot *repository.Lot, mat *repository.Material, input ConfirmReceivingInput) bool {
	if lot.PurchaseOrderItemID != nil || input.PurchaseOrderItemID != nil {
		return lot.PurchaseOrderItemID != nil && input.PurchaseOrderItemID != nil &&
			*lot.PurchaseOrderItemID == *input.PurchaseOrderItemID
	}
	return lot.MaterialID == mat.ID
}

// receive creates a fresh lot. A generated lot number that collides
// with a concurrent receiving is retried with the next sequence; an
// explicit number that collides surfaces DuplicateLot to the caller.
func (s *ReceivingService) receive(ctx context.Context, mat *repository.Material, input ConfirmReceivingInput) (*repository.Lot, []*repository.Item, error) {
	totalPieces := 0
	for _, spec := range input.Items {
		totalPieces += spec.Pieces
	}

	var lot *repository.Lot
	var items []*repository.Item

	for attempt := 0; attempt < lotNumberAttempts; attempt++ {
		lotNumber := ""
		if input.LotNumber != nil {
			lotNumber = *input.LotNumber
		} else {
			n, err := s.lots.CountForDate(ctx, input.ReceivedDate)
			if err != nil {
				return nil, nil, err
			}
			lotNumber = fmt.Sprintf("%s-%s-%04d",
				s.cfg.LotNumberPrefix, input.ReceivedDate.Format("20060102"), n+1+attempt)
		}

		lot = &repository.Lot{
			LotNumber:           lotNumber,
			MaterialID:          mat.ID,
			PurchaseOrderItemID: input.PurchaseOrderItemID,
			ReceivedDate:        input.ReceivedDate,
			ReceivedPieces:      totalPieces,
			UnitPriceCents:      input.UnitPriceCents,
		}
		items = nil

		err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
			if err := s.lots.CreateTx(ctx, tx, lot); err != nil {
				return err
			}

			for _, spec := range input.Items {
				item, err := s.createItemWithSeed(ctx, tx, mat, lot, spec)
				if err != nil {
					return err
				}
				items = append(items, item)
			}

			if input.PurchaseOrderItemID != nil {
				if err := s.orders.SetStatusTx(ctx, tx, *input.PurchaseOrderItemID, repository.POStatusReceived); err != nil {
					return err
				}
			}

			return s.writeLotAuditTx(ctx, tx, lot, repository.AuditActionReceive, items)
		})
		if err != nil {
			if input.LotNumber == nil && errors.Is(err, errors.ErrDuplicateLot) {
				continue // lost the race for this sequence number, take the next
			}
			return nil, nil, err
		}

		s.publishReceived(ctx, lot, mat, items)
		return lot, items, nil
	}

	return nil, nil, errors.Internal("failed to allocate a unique lot number")
}

// createItemWithSeed creates one item and its seeding `in` movement.
// The item's totals are written last so they equal the ledger sum by
// construction.
func (s *ReceivingService) createItemWithSeed(ctx context.Context, tx *sqlx.Tx, mat *repository.Material, lot *repository.Lot, spec ItemSpec) (*repository.Item, error) {
	act := actor.FromContext(ctx)

	identifier, err := s.generateIdentifier(ctx, tx)
	if err != nil {
		return nil, err
	}

	item := &repository.Item{
		Identifier:      identifier,
		LotID:           lot.ID,
		LengthMM:        spec.LengthMM,
		CurrentPieces:   0,
		CurrentWeightKg: decimal.Zero,
	}
	if err := s.items.CreateTx(ctx, tx, item); err != nil {
		return nil, err
	}

	g := conversion.Geometry{
		Shape:       mat.Shape,
		DiameterMM:  mat.DiameterMM,
		LengthMM:    spec.LengthMM,
		DensityGCM3: mat.DensityGCM3,
	}
	weightKg, err := conversion.PiecesToWeightKg(g, spec.Pieces)
	if err != nil {
		return nil, err
	}

	mv := &repository.Movement{
		ItemID:        item.ID,
		MovementType:  repository.MovementIn,
		PieceDelta:    spec.Pieces,
		WeightDeltaKg: weightKg,
		PrimaryUnit:   repository.PrimaryUnitPieces,
		DensityGCM3:   mat.DensityGCM3,
		ActorID:       act.ID,
		ActorName:     optionalName(act),
	}
	if err := s.movements.InsertTx(ctx, tx, mv); err != nil {
		return nil, err
	}

	if err := s.items.UpdateTotalsTx(ctx, tx, item.ID, spec.Pieces, weightKg); err != nil {
		return nil, err
	}
	item.CurrentPieces = spec.Pieces
	item.CurrentWeightKg = weightKg

	return item, nil
}

// generateIdentifier produces a fresh item identifier, regenerating on
// collision. The check-then-insert window is covered by the unique
// index; a loss there rolls the receiving back, which is acceptable at
// the collision rates a 40-bit identifier gives.
func randomIdentifierSuffix() string {
	u := uuid.New()
	return identifierEncoding.EncodeToString(u[:])[:8]
}

func (s *ReceivingService) generateIdentifier(ctx context.Context, tx *sqlx.Tx) (string, error) {
	for attempt := 0; attempt < identifierAttempts; attempt++ {
		identifier := fmt.Sprintf("%s-%s", s.cfg.ItemIDPrefix, s.newIdentifier())

		exists, err := s.items.IdentifierExistsTx(ctx, tx, identifier)
		if err != nil {
			return "", err
		}
		if !exists {
			return identifier, nil
		}

		s.logger.Warn().Str("identifier", identifier).Msg("item identifier collision, regenerating")
	}

	return "", errors.Internal("failed to generate a unique item identifier")
}

// reconfirm updates an unfinalized receiving in place. Item identity is
// preserved: existing items are rewritten rather than recreated, extra
// specs create new items, and surplus items are removed only when
// nothing but their seed movement exists.
func (s *ReceivingService) reconfirm(ctx context.Context, lot *repository.Lot, mat *repository.Material, input ConfirmReceivingInput) (*repository.Lot, []*repository.Item, error) {
	if lot.InspectionStatus != repository.InspectionPending {
		return nil, nil, errors.InvalidState("receiving is already finalized by inspection")
	}

	totalPieces := 0
	for _, spec := range input.Items {
		totalPieces += spec.Pieces
	}

	lot.MaterialID = mat.ID
	lot.PurchaseOrderItemID = input.PurchaseOrderItemID
	lot.ReceivedDate = input.ReceivedDate
	lot.ReceivedPieces = totalPieces
	lot.UnitPriceCents = input.UnitPriceCents

	var items []*repository.Item

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.lots.UpdateTx(ctx, tx, lot); err != nil {
			return err
		}

		existing, err := s.items.ListByLotTx(ctx, tx, lot.ID)
		if err != nil {
			return err
		}

		for i, spec := range input.Items {
			if i < len(existing) {
				item, err := s.rewriteItemSeed(ctx, tx, mat, existing[i].ID, spec)
				if err != nil {
					return err
				}
				items = append(items, item)
				continue
			}

			item, err := s.createItemWithSeed(ctx, tx, mat, lot, spec)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		for _, surplus := range existing[min(len(input.Items), len(existing)):] {
			if err := s.removeSeededItem(ctx, tx, surplus.ID); err != nil {
				return err
			}
		}

		if input.PurchaseOrderItemID != nil {
			if err := s.orders.SetStatusTx(ctx, tx, *input.PurchaseOrderItemID, repository.POStatusReceived); err != nil {
				return err
			}
		}

		return s.writeLotAuditTx(ctx, tx, lot, repository.AuditActionUpdate, items)
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishReceived(ctx, lot, mat, items)
	return lot, items, nil
}

// rewriteItemSeed locks an existing item, rewrites its length and seed
// movement, and recomputes its totals from the full ledger so any
// later movements stay accounted for
func (s *ReceivingService) rewriteItemSeed(ctx context.Context, tx *sqlx.Tx, mat *repository.Material, itemID string, spec ItemSpec) (*repository.Item, error) {
	item, err := s.items.GetForUpdateTx(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	ledger, err := s.movements.ListByItemTx(ctx, tx, item.ID)
	if err != nil {
		return nil, err
	}
	if len(ledger) == 0 {
		return nil, errors.InvalidState("item has no seeding movement")
	}
	seed := ledger[0]

	g := conversion.Geometry{
		Shape:       mat.Shape,
		DiameterMM:  mat.DiameterMM,
		LengthMM:    spec.LengthMM,
		DensityGCM3: mat.DensityGCM3,
	}
	weightKg, err := conversion.PiecesToWeightKg(g, spec.Pieces)
	if err != nil {
		return nil, err
	}

	seed.PieceDelta = spec.Pieces
	seed.WeightDeltaKg = weightKg
	seed.PrimaryUnit = repository.PrimaryUnitPieces
	if err := s.movements.UpdateTx(ctx, tx, seed); err != nil {
		return nil, err
	}

	if err := s.items.UpdateLengthTx(ctx, tx, item.ID, spec.LengthMM); err != nil {
		return nil, err
	}

	pieces, weight, err := s.movements.SumByItemTx(ctx, tx, item.ID)
	if err != nil {
		return nil, err
	}
	if pieces < 0 || weight.IsNegative() {
		return nil, errors.InsufficientStock(item.ID,
			"re-confirming with fewer pieces than already issued")
	}
	if err := s.items.UpdateTotalsTx(ctx, tx, item.ID, pieces, weight); err != nil {
		return nil, err
	}

	item.LengthMM = spec.LengthMM
	item.CurrentPieces = pieces
	item.CurrentWeightKg = weight
	return item, nil
}

// removeSeededItem deletes a surplus item during re-confirmation. The
// item must have no movements beyond its seed.
func (s *ReceivingService) removeSeededItem(ctx context.Context, tx *sqlx.Tx, itemID string) error {
	item, err := s.items.GetForUpdateTx(ctx, tx, itemID)
	if err != nil {
		return err
	}

	ledger, err := s.movements.ListByItemTx(ctx, tx, item.ID)
	if err != nil {
		return err
	}
	if len(ledger) > 1 {
		return errors.InvalidState("cannot drop an item that already has movements beyond its seed")
	}

	for _, mv := range ledger {
		if err := s.movements.DeleteTx(ctx, tx, mv.ID); err != nil {
			return err
		}
	}

	return s.items.DeleteTx(ctx, tx, item.ID)
}

// SetInspectionStatus records an inspection result. Only
// pending→passed and pending→failed are legal. A failed lot keeps its
// stock; reversal requires an explicit adjustment movement.
func (s *ReceivingService) SetInspectionStatus(ctx context.Context, lotID, status string) (*repository.Lot, error) {
	if status != repository.InspectionPassed && status != repository.InspectionFailed {
		return nil, errors.Validation(map[string]string{
			"status": "must be one of: passed, failed",
		})
	}

	lot, err := s.lots.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.InspectionStatus != repository.InspectionPending {
		return nil, errors.InvalidState(fmt.Sprintf(
			"lot is already %s; inspection cannot be repeated", lot.InspectionStatus))
	}

	act := actor.FromContext(ctx)
	if err := s.lots.SetInspectionStatus(ctx, lotID, status, act.ID); err != nil {
		return nil, err
	}

	detail, _ := json.Marshal(map[string]string{"status": status})
	if err := s.audit.Create(ctx, &repository.AuditEntry{
		EntityType: "lot",
		EntityID:   lotID,
		Action:     repository.AuditActionInspect,
		Detail:     detail,
		ActorID:    act.ID,
		ActorName:  optionalName(act),
	}); err != nil {
		s.logger.Warn().Err(err).Str("lot_id", lotID).Msg("failed to write audit entry")
	}

	s.events.LotInspected(ctx, messaging.LotInspectedEvent{
		LotID:   lotID,
		Status:  status,
		ActorID: act.ID,
	})

	s.logger.Info().Str("lot_id", lotID).Str("status", status).Msg("lot inspected")

	return s.lots.GetByID(ctx, lotID)
}

// GetLot gets a lot by ID
func (s *ReceivingService) GetLot(ctx context.Context, id string) (*repository.Lot, error) {
	return s.lots.GetByID(ctx, id)
}

// ListLots lists lots with optional filters
func (s *ReceivingService) ListLots(ctx context.Context, materialID, inspectionStatus string, page, perPage int) ([]*repository.Lot, int64, error) {
	return s.lots.List(ctx, materialID, inspectionStatus, page, perPage)
}

// ListLotItems lists the items created from a lot
func (s *ReceivingService) ListLotItems(ctx context.Context, lotID string) ([]*repository.Item, error) {
	if _, err := s.lots.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.items.ListByLot(ctx, lotID)
}

func (s *ReceivingService) writeLotAuditTx(ctx context.Context, tx *sqlx.Tx, lot *repository.Lot, action string, items []*repository.Item) error {
	act := actor.FromContext(ctx)

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Identifier)
	}
	detail, err := json.Marshal(map[string]interface{}{
		"lot_number":      lot.LotNumber,
		"material_id":     lot.MaterialID,
		"received_pieces": lot.ReceivedPieces,
		"items":           ids,
	})
	if err != nil {
		return err
	}

	return s.audit.CreateTx(ctx, tx, &repository.AuditEntry{
		EntityType: "lot",
		EntityID:   lot.ID,
		Action:     action,
		Detail:     detail,
		ActorID:    act.ID,
		ActorName:  optionalName(act),
	})
}

func (s *ReceivingService) publishReceived(ctx context.Context, lot *repository.Lot, mat *repository.Material, items []*repository.Item) {
	act := actor.FromContext(ctx)

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	s.events.LotReceived(ctx, messaging.LotReceivedEvent{
		LotID:          lot.ID,
		LotNumber:      lot.LotNumber,
		MaterialID:     mat.ID,
		ItemIDs:        ids,
		ReceivedPieces: lot.ReceivedPieces,
		ActorID:        act.ID,
	})
}
