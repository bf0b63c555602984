package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Validate applies the stock effects of a document and marks it done. Ledger
// rows, balances and the status change commit together or not at all. A
// ConflictError from the store replays the whole unit of work up to the
// configured number of attempts.
func (s *Service) Validate(ctx context.Context, id uuid.UUID, actorID string) (ValidationResult, error) {
	if actorID == "" {
		return ValidationResult{}, &ValidationError{Field: "actor_id", Reason: "required"}
	}
	start := time.Now()
	var (
		result ValidationResult
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, err = s.validateOnce(ctx, id, actorID)
		if err == nil || !isConflict(err) {
			break
		}
		if attempt >= s.maxAttempts {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				err = &ConflictError{Attempts: attempt, Err: conflict.Err}
			}
			break
		}
		s.metrics.observeRetry(result.Document.Kind)
		s.logger.Warn("validate conflict, retrying",
			slog.String("document_id", id.String()),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		if waitErr := s.backoff(ctx, attempt); waitErr != nil {
			err = waitErr
			break
		}
	}

	kind := result.Document.Kind
	if err != nil {
		s.metrics.observeValidation(kind, resultLabel(err), time.Since(start))
		s.logger.Info("validate rejected",
			slog.String("document_id", id.String()),
			slog.Any("error", err))
		return ValidationResult{}, err
	}
	s.metrics.observeValidation(kind, "success", time.Since(start))

	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "inventory:validate", result.Document, map[string]any{
		"ledger_entries": len(result.Entries),
	})
	s.logger.Info("document validated",
		slog.String("document_id", id.String()),
		slog.String("reference", result.Document.ReferenceNumber),
		slog.String("kind", string(kind)),
		slog.Int("ledger_entries", len(result.Entries)))
	return result, nil
}

func (s *Service) validateOnce(ctx context.Context, id uuid.UUID, actorID string) (ValidationResult, error) {
	var result ValidationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		result.Document = doc
		if !doc.Status.CanValidate(s.requireReady) {
			return &InvalidStateError{DocumentID: id, Status: doc.Status, Op: "validate"}
		}
		if len(doc.Lines) == 0 {
			return &ValidationError{Field: "lines", Reason: "at least one line is required"}
		}

		effects, err := ComputeEffects(doc)
		if err != nil {
			return err
		}
		pairs := touchedPairs(effects)
		locked, err := tx.LockBalances(ctx, pairs)
		if err != nil {
			return err
		}
		entries, after, err := applyEffects(doc, effects, locked, actorID)
		if err != nil {
			return err
		}

		now := s.clock()
		for i := range entries {
			entries[i].CreatedAt = now
		}
		entries, err = tx.AppendLedger(ctx, entries)
		if err != nil {
			return err
		}
		balances := make([]Balance, 0, len(pairs))
		for _, pair := range pairs {
			balances = append(balances, Balance{
				ProductID:   pair.ProductID,
				WarehouseID: pair.WarehouseID,
				Quantity:    after[pair],
				UpdatedAt:   now,
			})
		}
		if err := tx.SetBalances(ctx, balances); err != nil {
			return err
		}

		ok, err := tx.UpdateStatus(ctx, id, doc.Status, StatusDone, actorID, &now)
		if err != nil {
			return err
		}
		if !ok {
			return &InvalidStateError{DocumentID: id, Status: doc.Status, Op: "validate"}
		}
		doc.Status = StatusDone
		doc.ValidatedBy = actorID
		doc.ValidatedAt = &now
		doc.UpdatedAt = now
		result = ValidationResult{Document: doc, Entries: entries, Balances: balances}
		return nil
	})
	return result, err
}

func (s *Service) backoff(ctx context.Context, attempt int) error {
	if s.retryBackoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.retryBackoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func resultLabel(err error) string {
	var (
		invalid   *InvalidStateError
		short     *InsufficientStockError
		conflict  *ConflictError
		malformed *ValidationError
	)
	switch {
	case errors.As(err, &short):
		return "insufficient_stock"
	case errors.As(err, &invalid):
		return "invalid_state"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &malformed):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
