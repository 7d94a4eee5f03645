package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/barstock/barstock-backend/internal/inventory/conversion"
	"github.com/barstock/barstock-backend/internal/inventory/events"
	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/pkg/actor"
	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/barstock/barstock-backend/pkg/logger"
	"github.com/barstock/barstock-backend/pkg/messaging"
)

var movementsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "barstock_movements_total",
		Help: "Stock movements applied to the ledger.",
	},
	[]string{"type", "operation"},
)

// LedgerService owns the movement ledger: every stock change runs
// through it inside a single transaction that locks the item row, so
// concurrent movements against one item serialize and the stock
// sufficiency check cannot race.
type LedgerService struct {
	db        *database.DB
	items     *repository.ItemRepository
	movements *repository.MovementRepository
	audit     *repository.AuditRepository
	events    *events.Publisher
	logger    *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *database.DB, items *repository.ItemRepository, movements *repository.MovementRepository, audit *repository.AuditRepository, pub *events.Publisher, log *logger.Logger) *LedgerService {
	return &LedgerService{
		db:        db,
		items:     items,
		movements: movements,
		audit:     audit,
		events:    pub,
		logger:    log.WithComponent("ledger"),
	}
}

// RecordMovementInput is the request to append one movement. Exactly
// one of PieceDelta and WeightDeltaKg must be set; it becomes the
// authoritative unit and the other delta is derived.
type RecordMovementInput struct {
	ItemID        string
	MovementType  string
	PieceDelta    *int
	WeightDeltaKg *decimal.Decimal
	Note          *string
}

// EditMovementInput rewrites a historical movement. At most one delta
// may be set; omitting both makes it a note-only edit.
type EditMovementInput struct {
	MovementID    string
	PieceDelta    *int
	WeightDeltaKg *decimal.Decimal
	Note          *string
}

func validMovementType(t string) bool {
	switch t {
	case repository.MovementIn, repository.MovementOut, repository.MovementReturn, repository.MovementAdjustment:
		return true
	}
	return false
}

// checkDeltaSign enforces the sign convention per movement type:
// receipts and returns add stock, issues remove it, adjustments may do
// either but must not be zero.
func checkDeltaSign(movementType string, pieces int, weight decimal.Decimal, primaryUnit string) error {
	var sign int
	if primaryUnit == repository.PrimaryUnitPieces {
		switch {
		case pieces > 0:
			sign = 1
		case pieces < 0:
			sign = -1
		}
	} else {
		sign = weight.Sign()
	}

	switch movementType {
	case repository.MovementIn, repository.MovementReturn:
		if sign <= 0 {
			return errors.Validation(map[string]string{"delta": "must be positive for in and return movements"})
		}
	case repository.MovementOut:
		if sign >= 0 {
			return errors.Validation(map[string]string{"delta": "must be negative for out movements"})
		}
	case repository.MovementAdjustment:
		if sign == 0 {
			return errors.Validation(map[string]string{"delta": "must not be zero"})
		}
	}

	return nil
}

// deriveDeltas fills in the non-authoritative delta from the
// authoritative one. Weight-primary piece derivation floors the
// magnitude: a partial bar never counts as a piece.
func deriveDeltas(g conversion.Geometry, pieceDelta *int, weightDelta *decimal.Decimal) (pieces int, weightKg decimal.Decimal, primaryUnit string, err error) {
	if pieceDelta != nil {
		pieces = *pieceDelta
		weightKg, err = conversion.PiecesToWeightKg(g, pieces)
		if err != nil {
			return 0, decimal.Zero, "", err
		}
		return pieces, weightKg, repository.PrimaryUnitPieces, nil
	}

	weightKg = weightDelta.Round(conversion.WeightScale)
	magnitude, _, err := conversion.WeightToPieces(g, weightKg.Abs())
	if err != nil {
		return 0, decimal.Zero, "", err
	}
	pieces = magnitude
	if weightKg.IsNegative() {
		pieces = -magnitude
	}
	return pieces, weightKg, repository.PrimaryUnitWeight, nil
}

// RecordMovement appends a movement and applies its deltas to the
// item's running totals in one transaction
func (s *LedgerService) RecordMovement(ctx context.Context, input RecordMovementInput) (*repository.Movement, error) {
	if !validMovementType(input.MovementType) {
		return nil, errors.Validation(map[string]string{
			"movement_type": "must be one of: in, out, return, adjustment",
		})
	}
	if (input.PieceDelta == nil) == (input.WeightDeltaKg == nil) {
		return nil, errors.Validation(map[string]string{
			"delta": "exactly one of piece_delta or weight_delta_kg must be set",
		})
	}

	act := actor.FromContext(ctx)
	var mv *repository.Movement
	var newPieces int

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err := s.items.GetForUpdateTx(ctx, tx, input.ItemID)
		if err != nil {
			return err
		}

		geo, err := s.items.GetGeometryTx(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		g := conversion.Geometry{
			Shape:       geo.Shape,
			DiameterMM:  geo.DiameterMM,
			LengthMM:    geo.LengthMM,
			DensityGCM3: geo.DensityGCM3,
		}

		pieces, weightKg, primaryUnit, err := deriveDeltas(g, input.PieceDelta, input.WeightDeltaKg)
		if err != nil {
			return err
		}
		if err := checkDeltaSign(input.MovementType, pieces, weightKg, primaryUnit); err != nil {
			return err
		}

		newPieces = item.CurrentPieces + pieces
		newWeight := item.CurrentWeightKg.Add(weightKg)
		if newPieces < 0 || newWeight.IsNegative() {
			if primaryUnit == repository.PrimaryUnitWeight {
				return errors.InsufficientStock(item.ID, fmt.Sprintf(
					"movement of %s kg exceeds current stock of %s kg",
					weightKg.StringFixed(3), item.CurrentWeightKg.StringFixed(3)))
			}
			return errors.InsufficientStock(item.ID, fmt.Sprintf(
				"movement of %d pieces exceeds current stock of %d", pieces, item.CurrentPieces))
		}

		mv = &repository.Movement{
			ItemID:        item.ID,
			MovementType:  input.MovementType,
			PieceDelta:    pieces,
			WeightDeltaKg: weightKg,
			PrimaryUnit:   primaryUnit,
			DensityGCM3:   g.DensityGCM3,
			Note:          input.Note,
			ActorID:       act.ID,
			ActorName:     optionalName(act),
		}
		if err := s.movements.InsertTx(ctx, tx, mv); err != nil {
			return err
		}

		if err := s.items.UpdateTotalsTx(ctx, tx, item.ID, newPieces, newWeight); err != nil {
			return err
		}

		return s.writeAuditTx(ctx, tx, mv.ID, repository.AuditActionCreate, map[string]interface{}{
			"item_id":       item.ID,
			"movement_type": mv.MovementType,
			"piece_delta":   mv.PieceDelta,
			"weight_delta":  mv.WeightDeltaKg.String(),
			"pieces_before": item.CurrentPieces,
			"pieces_after":  newPieces,
		})
	})
	if err != nil {
		return nil, err
	}

	movementsTotal.WithLabelValues(mv.MovementType, "record").Inc()
	s.events.MovementRecorded(ctx, messaging.MovementRecordedEvent{
		MovementID:    mv.ID,
		ItemID:        mv.ItemID,
		MovementType:  mv.MovementType,
		PieceDelta:    mv.PieceDelta,
		WeightDeltaKg: mv.WeightDeltaKg.String(),
		CurrentPieces: newPieces,
		ActorID:       act.ID,
	})

	s.logger.Info().
		Str("movement_id", mv.ID).
		Str("item_id", mv.ItemID).
		Str("movement_type", mv.MovementType).
		Int("piece_delta", mv.PieceDelta).
		Msg("movement recorded")

	return mv, nil
}

// EditMovement rewrites a historical movement and recomputes the
// item's totals by reverting the old deltas and applying the new ones.
// The derived delta is recomputed at the density stored on the
// movement, not the material's current density.
func (s *LedgerService) EditMovement(ctx context.Context, input EditMovementInput) (*repository.Movement, error) {
	if input.PieceDelta != nil && input.WeightDeltaKg != nil {
		return nil, errors.Validation(map[string]string{
			"delta": "at most one of piece_delta or weight_delta_kg may be set",
		})
	}

	act := actor.FromContext(ctx)
	var mv *repository.Movement
	var newPieces, oldPieces int

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		mv, err = s.movements.GetForUpdateTx(ctx, tx, input.MovementID)
		if err != nil {
			return err
		}

		item, err := s.items.GetForUpdateTx(ctx, tx, mv.ItemID)
		if err != nil {
			return err
		}

		oldPieces = mv.PieceDelta
		oldWeight := mv.WeightDeltaKg

		if input.PieceDelta != nil || input.WeightDeltaKg != nil {
			geo, err := s.items.GetGeometryTx(ctx, tx, item.ID)
			if err != nil {
				return err
			}
			g := conversion.Geometry{
				Shape:       geo.Shape,
				DiameterMM:  geo.DiameterMM,
				LengthMM:    geo.LengthMM,
				DensityGCM3: mv.DensityGCM3,
			}

			pieces, weightKg, primaryUnit, err := deriveDeltas(g, input.PieceDelta, input.WeightDeltaKg)
			if err != nil {
				return err
			}
			if err := checkDeltaSign(mv.MovementType, pieces, weightKg, primaryUnit); err != nil {
				return err
			}

			mv.PieceDelta = pieces
			mv.WeightDeltaKg = weightKg
			mv.PrimaryUnit = primaryUnit
		}
		if input.Note != nil {
			mv.Note = input.Note
		}

		newPieces = item.CurrentPieces - oldPieces + mv.PieceDelta
		newWeight := item.CurrentWeightKg.Sub(oldWeight).Add(mv.WeightDeltaKg)
		if newPieces < 0 || newWeight.IsNegative() {
			return errors.InsufficientStock(item.ID, fmt.Sprintf(
				"editing movement to %d pieces would drive stock negative", mv.PieceDelta))
		}

		if err := s.movements.UpdateTx(ctx, tx, mv); err != nil {
			return err
		}
		if err := s.items.UpdateTotalsTx(ctx, tx, item.ID, newPieces, newWeight); err != nil {
			return err
		}

		return s.writeAuditTx(ctx, tx, mv.ID, repository.AuditActionUpdate, map[string]interface{}{
			"item_id":           item.ID,
			"old_piece_delta":   oldPieces,
			"new_piece_delta":   mv.PieceDelta,
			"old_weight_delta":  oldWeight.String(),
			"new_weight_delta":  mv.WeightDeltaKg.String(),
			"pieces_recomputed": newPieces,
		})
	})
	if err != nil {
		return nil, err
	}

	movementsTotal.WithLabelValues(mv.MovementType, "edit").Inc()
	s.events.MovementEdited(ctx, messaging.MovementEditedEvent{
		MovementID:    mv.ID,
		ItemID:        mv.ItemID,
		OldPieceDelta: oldPieces,
		NewPieceDelta: mv.PieceDelta,
		CurrentPieces: newPieces,
		ActorID:       act.ID,
	})

	s.logger.Info().
		Str("movement_id", mv.ID).
		Int("old_piece_delta", oldPieces).
		Int("new_piece_delta", mv.PieceDelta).
		Msg("movement edited")

	return mv, nil
}

// DeleteMovement reverts a movement's effect on the item's totals and
// removes it from the ledger. Deleting a receipt that later issues
// already consumed fails with InvalidState and changes nothing.
func (s *LedgerService) DeleteMovement(ctx context.Context, movementID string) error {
	act := actor.FromContext(ctx)
	var mv *repository.Movement
	var newPieces int

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		mv, err = s.movements.GetForUpdateTx(ctx, tx, movementID)
		if err != nil {
			return err
		}

		item, err := s.items.GetForUpdateTx(ctx, tx, mv.ItemID)
		if err != nil {
			return err
		}

		newPieces = item.CurrentPieces - mv.PieceDelta
		newWeight := item.CurrentWeightKg.Sub(mv.WeightDeltaKg)
		if newPieces < 0 || newWeight.IsNegative() {
			return errors.InvalidState(
				"deleting this movement would drive stock negative; later movements depend on it")
		}

		if err := s.movements.DeleteTx(ctx, tx, mv.ID); err != nil {
			return err
		}
		if err := s.items.UpdateTotalsTx(ctx, tx, item.ID, newPieces, newWeight); err != nil {
			return err
		}

		return s.writeAuditTx(ctx, tx, mv.ID, repository.AuditActionDelete, map[string]interface{}{
			"item_id":           item.ID,
			"piece_delta":       mv.PieceDelta,
			"weight_delta":      mv.WeightDeltaKg.String(),
			"pieces_recomputed": newPieces,
		})
	})
	if err != nil {
		return err
	}

	movementsTotal.WithLabelValues(mv.MovementType, "delete").Inc()
	s.events.MovementDeleted(ctx, messaging.MovementDeletedEvent{
		MovementID:    mv.ID,
		ItemID:        mv.ItemID,
		PieceDelta:    mv.PieceDelta,
		CurrentPieces: newPieces,
		ActorID:       act.ID,
	})

	s.logger.Info().
		Str("movement_id", mv.ID).
		Str("item_id", mv.ItemID).
		Msg("movement deleted")

	return nil
}

// GetMovement gets a movement by ID
func (s *LedgerService) GetMovement(ctx context.Context, id string) (*repository.Movement, error) {
	return s.movements.GetByID(ctx, id)
}

func (s *LedgerService) writeAuditTx(ctx context.Context, tx *sqlx.Tx, movementID, action string, detail map[string]interface{}) error {
	act := actor.FromContext(ctx)

	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}

	return s.audit.CreateTx(ctx, tx, &repository.AuditEntry{
		EntityType: "movement",
		EntityID:   movementID,
		Action:     action,
		Detail:     payload,
		ActorID:    act.ID,
		ActorName:  optionalName(act),
	})
}
