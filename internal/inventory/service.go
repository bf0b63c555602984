package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDocument(ctx context.Context, id uuid.UUID) (SourceDocument, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]SourceDocument, int, error)
	GetBalance(ctx context.Context, pair Pair) (int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed create requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Invalidator drops cached read models after document or stock changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates document lifecycle and validation.
type Service struct {
	repo         RepositoryPort
	numbers      Numberer
	audit        AuditPort
	idempotency  IdempotencyPort
	cache        Invalidator
	metrics      *Metrics
	logger       *slog.Logger
	maxAttempts  int
	retryBackoff time.Duration
	requireReady bool
	clock        func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// MaxValidateAttempts bounds Validate replays after a ConflictError.
	MaxValidateAttempts int
	RetryBackoff        time.Duration
	// RequireReady restricts Validate to documents in ready.
	RequireReady bool
	Cache        Invalidator
	Metrics      *Metrics
	Logger       *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, numbers Numberer, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig) *Service {
	attempts := cfg.MaxValidateAttempts
	if attempts <= 0 {
		attempts = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		numbers:      numbers,
		audit:        audit,
		idempotency:  idem,
		cache:        cfg.Cache,
		metrics:      cfg.Metrics,
		logger:       logger.With(slog.String("component", "inventory")),
		maxAttempts:  attempts,
		retryBackoff: cfg.RetryBackoff,
		requireReady: cfg.RequireReady,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateDraft persists a new draft document with a fresh reference number.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (SourceDocument, error) {
	if !input.Kind.IsValid() {
		return SourceDocument{}, &ValidationError{Field: "kind", Reason: "unknown document kind " + string(input.Kind)}
	}
	if strings.TrimSpace(input.ActorID) == "" {
		return SourceDocument{}, &ValidationError{Field: "actor_id", Reason: "required"}
	}
	if err := validateHeader(input.Kind, input.Header); err != nil {
		return SourceDocument{}, err
	}
	if len(input.Lines) == 0 {
		return SourceDocument{}, &ValidationError{Field: "lines", Reason: "at least one line is required"}
	}
	for i, line := range input.Lines {
		if err := validateLine(input.Kind, line); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Field = fmt.Sprintf("lines[%d].%s", i, verr.Field)
			}
			return SourceDocument{}, err
		}
	}

	insertedKey := false
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "inventory:create_draft"); err != nil {
			return SourceDocument{}, err
		}
		insertedKey = true
	}

	doc, err := s.createDraft(ctx, input)
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return SourceDocument{}, err
	}
	s.invalidate(ctx)
	s.logger.Info("draft created",
		slog.String("document_id", doc.ID.String()),
		slog.String("reference", doc.ReferenceNumber),
		slog.String("kind", string(doc.Kind)),
		slog.Int("lines", len(doc.Lines)))
	return doc, nil
}

func (s *Service) createDraft(ctx context.Context, input CreateDraftInput) (SourceDocument, error) {
	ref, err := s.numbers.Next(ctx, input.Kind)
	if err != nil {
		return SourceDocument{}, err
	}
	now := s.clock()
	doc := SourceDocument{
		ID:              uuid.New(),
		Kind:            input.Kind,
		ReferenceNumber: ref,
		Status:          StatusDraft,
		PartnerName:     strings.TrimSpace(input.Header.PartnerName),
		Reason:          strings.TrimSpace(input.Header.Reason),
		Notes:           input.Header.Notes,
		CreatedBy:       input.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if input.Kind == KindTransfer {
		doc.FromWarehouseID = input.Header.FromWarehouseID
		doc.ToWarehouseID = input.Header.ToWarehouseID
	} else {
		doc.WarehouseID = input.Header.WarehouseID
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc.Lines = make([]DocumentLine, 0, len(input.Lines))
		for i, in := range input.Lines {
			line, err := s.buildLine(ctx, tx, doc, in)
			if err != nil {
				return err
			}
			line.Position = i + 1
			doc.Lines = append(doc.Lines, line)
		}
		return tx.InsertDocument(ctx, doc)
	})
	if err != nil {
		return SourceDocument{}, err
	}
	return doc, nil
}

// UpdateHeader edits the free text attributes of a draft.
func (s *Service) UpdateHeader(ctx context.Context, id uuid.UUID, patch HeaderPatch) (SourceDocument, error) {
	var doc SourceDocument
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Status.CanEdit() {
			return &InvalidStateError{DocumentID: id, Status: doc.Status, Op: "edit"}
		}
		if patch.PartnerName != nil {
			if doc.Kind != KindReceipt && doc.Kind != KindDelivery {
				return &ValidationError{Field: "partner_name", Reason: "only receipts and deliveries carry a partner"}
			}
			doc.PartnerName = strings.TrimSpace(*patch.PartnerName)
		}
		if patch.Reason != nil {
			if doc.Kind != KindAdjustment {
				return &ValidationError{Field: "reason", Reason: "only adjustments carry a reason"}
			}
			doc.Reason = strings.TrimSpace(*patch.Reason)
			if doc.Reason == "" {
				return &ValidationError{Field: "reason", Reason: "required"}
			}
		}
		if patch.Notes != nil {
			doc.Notes = *patch.Notes
		}
		doc.UpdatedAt = s.clock()
		return tx.UpdateDocumentHeader(ctx, doc)
	})
	if err != nil {
		return SourceDocument{}, err
	}
	return doc, nil
}

// AddLine appends a line to a draft.
func (s *Service) AddLine(ctx context.Context, id uuid.UUID, input LineInput) (DocumentLine, error) {
	var line DocumentLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := s.editableDocument(ctx, tx, id, "add line to")
		if err != nil {
			return err
		}
		if err := validateLine(doc.Kind, input); err != nil {
			return err
		}
		line, err = s.buildLine(ctx, tx, doc, input)
		if err != nil {
			return err
		}
		line.Position = nextPosition(doc.Lines)
		return tx.InsertLine(ctx, line)
	})
	if err != nil {
		return DocumentLine{}, err
	}
	return line, nil
}

// UpdateLine replaces the product and quantities of a draft line. Adjustment
// lines take a fresh theoretical snapshot.
func (s *Service) UpdateLine(ctx context.Context, id, lineID uuid.UUID, input LineInput) (DocumentLine, error) {
	var line DocumentLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := s.editableDocument(ctx, tx, id, "update line of")
		if err != nil {
			return err
		}
		existing, ok := findLine(doc.Lines, lineID)
		if !ok {
			return ErrNotFound
		}
		if err := validateLine(doc.Kind, input); err != nil {
			return err
		}
		line, err = s.buildLine(ctx, tx, doc, input)
		if err != nil {
			return err
		}
		line.ID = existing.ID
		line.Position = existing.Position
		line.CreatedAt = existing.CreatedAt
		return tx.UpdateLine(ctx, line)
	})
	if err != nil {
		return DocumentLine{}, err
	}
	return line, nil
}

// RemoveLine deletes a draft line. The last line cannot be removed.
func (s *Service) RemoveLine(ctx context.Context, id, lineID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := s.editableDocument(ctx, tx, id, "remove line from")
		if err != nil {
			return err
		}
		if _, ok := findLine(doc.Lines, lineID); !ok {
			return ErrNotFound
		}
		if len(doc.Lines) == 1 {
			return &ValidationError{Field: "lines", Reason: "a document needs at least one line"}
		}
		return tx.DeleteLine(ctx, id, lineID)
	})
}

// SetStatus performs a manual lifecycle transition. done is rejected; use
// Validate.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, next Status, actorID string) (SourceDocument, error) {
	if !next.IsValid() {
		return SourceDocument{}, &ValidationError{Field: "status", Reason: "unknown status " + string(next)}
	}
	var doc SourceDocument
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Status.CanTransition(next) {
			return &InvalidStateError{DocumentID: id, Status: doc.Status, Op: "move to " + string(next)}
		}
		ok, err := tx.UpdateStatus(ctx, id, doc.Status, next, "", nil)
		if err != nil {
			return err
		}
		if !ok {
			return &InvalidStateError{DocumentID: id, Status: doc.Status, Op: "move to " + string(next)}
		}
		doc.Status = next
		doc.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		return SourceDocument{}, err
	}
	s.invalidate(ctx)
	if next == StatusCancelled {
		s.recordAudit(ctx, actorID, "inventory:cancel", doc, nil)
	}
	s.logger.Info("document status changed",
		slog.String("document_id", id.String()),
		slog.String("status", string(next)))
	return doc, nil
}

// Cancel moves a pre-terminal document to cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID string) (SourceDocument, error) {
	return s.SetStatus(ctx, id, StatusCancelled, actorID)
}

// GetDocument returns a document with its lines.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (SourceDocument, error) {
	return s.repo.GetDocument(ctx, id)
}

// ListDocuments lists document headers newest first.
func (s *Service) ListDocuments(ctx context.Context, filter DocumentFilter) ([]SourceDocument, int, error) {
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return nil, 0, &ValidationError{Field: "kind", Reason: "unknown document kind " + string(filter.Kind)}
	}
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, 0, &ValidationError{Field: "status", Reason: "unknown status " + string(st)}
		}
	}
	return s.repo.ListDocuments(ctx, filter)
}

// GetBalance returns the on hand quantity, 0 when the pair was never touched.
func (s *Service) GetBalance(ctx context.Context, productID, warehouseID uuid.UUID) (int64, error) {
	if productID == uuid.Nil {
		return 0, &ValidationError{Field: "product_id", Reason: "required"}
	}
	if warehouseID == uuid.Nil {
		return 0, &ValidationError{Field: "warehouse_id", Reason: "required"}
	}
	return s.repo.GetBalance(ctx, Pair{ProductID: productID, WarehouseID: warehouseID})
}

func (s *Service) editableDocument(ctx context.Context, tx TxRepository, id uuid.UUID, op string) (SourceDocument, error) {
	doc, err := tx.GetDocumentForUpdate(ctx, id)
	if err != nil {
		return SourceDocument{}, err
	}
	if !doc.Status.CanEdit() {
		return SourceDocument{}, &InvalidStateError{DocumentID: id, Status: doc.Status, Op: op}
	}
	return doc, nil
}

func (s *Service) buildLine(ctx context.Context, tx TxRepository, doc SourceDocument, in LineInput) (DocumentLine, error) {
	line := DocumentLine{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		ProductID:  in.ProductID,
		CreatedAt:  s.clock(),
	}
	if doc.Kind != KindAdjustment {
		line.Quantity = in.Quantity
		return line, nil
	}
	theoretical, err := tx.CurrentBalance(ctx, Pair{ProductID: in.ProductID, WarehouseID: doc.WarehouseID})
	if err != nil {
		return DocumentLine{}, err
	}
	line.CountedQuantity = in.CountedQuantity
	line.TheoreticalQuantity = theoretical
	return line, nil
}

// invalidate bumps the read-model cache after a committed write. Pending
// counts and balances both feed cached views.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID, action string, doc SourceDocument, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["reference_number"] = doc.ReferenceNumber
	meta["kind"] = string(doc.Kind)
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_document",
		EntityID: doc.ID.String(),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validateHeader(kind Kind, h Header) error {
	switch kind {
	case KindTransfer:
		if h.FromWarehouseID == uuid.Nil {
			return &ValidationError{Field: "from_warehouse_id", Reason: "required"}
		}
		if h.ToWarehouseID == uuid.Nil {
			return &ValidationError{Field: "to_warehouse_id", Reason: "required"}
		}
		if h.FromWarehouseID == h.ToWarehouseID {
			return &ValidationError{Field: "to_warehouse_id", Reason: "must differ from from_warehouse_id"}
		}
	default:
		if h.WarehouseID == uuid.Nil {
			return &ValidationError{Field: "warehouse_id", Reason: "required"}
		}
	}
	if kind == KindAdjustment && strings.TrimSpace(h.Reason) == "" {
		return &ValidationError{Field: "reason", Reason: "required"}
	}
	if kind != KindAdjustment && h.Reason != "" {
		return &ValidationError{Field: "reason", Reason: "only adjustments carry a reason"}
	}
	if (kind == KindTransfer || kind == KindAdjustment) && h.PartnerName != "" {
		return &ValidationError{Field: "partner_name", Reason: "only receipts and deliveries carry a partner"}
	}
	return nil
}

func validateLine(kind Kind, in LineInput) error {
	if in.ProductID == uuid.Nil {
		return &ValidationError{Field: "product_id", Reason: "required"}
	}
	if kind == KindAdjustment {
		if in.CountedQuantity < 0 {
			return &ValidationError{Field: "counted_quantity", Reason: "must be >= 0"}
		}
		return nil
	}
	if in.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be > 0"}
	}
	return nil
}

func findLine(lines []DocumentLine, id uuid.UUID) (DocumentLine, bool) {
	for _, l := range lines {
		if l.ID == id {
			return l, true
		}
	}
	return DocumentLine{}, false
}

func nextPosition(lines []DocumentLine) int {
	last := 0
	for _, l := range lines {
		if l.Position > last {
			last = l.Position
		}
	}
	return last + 1
}
