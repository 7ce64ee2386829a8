// Package ledger implements the milestone payment state machine and drives
// invoice issuance when a stage is paid.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dbritez/consultora-billing/internal/exchange"
	"github.com/dbritez/consultora-billing/internal/model"
	"github.com/dbritez/consultora-billing/internal/sequence"
	"github.com/dbritez/consultora-billing/internal/sifen"
)

type StageStore interface {
	CreateStages(ctx context.Context, stages []model.PaymentStage) error
	GetStage(ctx context.Context, id uuid.UUID) (*model.PaymentStage, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.PaymentStage, error)
	// UpdateStage persists all mutable stage fields guarded by the expected
	// version. Returns false when another writer got there first.
	UpdateStage(ctx context.Context, stage *model.PaymentStage, expectedVersion int64) (bool, error)
}

type InvoiceStore interface {
	Create(ctx context.Context, inv *model.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	MarkAccepted(ctx context.Context, id uuid.UUID, cdc, protocolID, verificationURL string) (bool, error)
	MarkRejected(ctx context.Context, id uuid.UUID, code, reason string) (bool, error)
}

type ProfileStore interface {
	CompanyByID(ctx context.Context, id uuid.UUID) (*model.CompanyProfile, error)
	ClientByProject(ctx context.Context, projectID uuid.UUID) (*model.ClientProfile, error)
}

type RateResolver interface {
	FetchCurrent(ctx context.Context) (model.ExchangeRateSnapshot, error)
}

type InvoiceBuilder interface {
	Build(ctx context.Context, company model.CompanyProfile, client model.ClientProfile, stage model.PaymentStage, number sequence.ReservedNumber) (*model.Invoice, error)
}

type NumberReserver interface {
	ReserveNext(ctx context.Context, company model.CompanyProfile) (sequence.ReservedNumber, error)
}

type GatewaySubmitter interface {
	Submit(ctx context.Context, document []byte) (*sifen.SubmitResult, error)
}

// Notifier hands events to the outer application's transport. Fire and
// forget: the ledger never waits on delivery.
type Notifier interface {
	Notify(ctx context.Context, event model.Event)
}

type Service struct {
	stages   StageStore
	invoices InvoiceStore
	profiles ProfileStore
	rates    RateResolver
	builder  InvoiceBuilder
	numbers  NumberReserver
	gateway  GatewaySubmitter
	notifier Notifier

	fallbackRate  decimal.Decimal
	submitTimeout time.Duration
	log           zerolog.Logger
}

func NewService(
	stages StageStore,
	invoices InvoiceStore,
	profiles ProfileStore,
	rates RateResolver,
	builder InvoiceBuilder,
	numbers NumberReserver,
	gateway GatewaySubmitter,
	notifier Notifier,
	fallbackRate decimal.Decimal,
	submitTimeout time.Duration,
	log zerolog.Logger,
) *Service {
	return &Service{
		stages:        stages,
		invoices:      invoices,
		profiles:      profiles,
		rates:         rates,
		builder:       builder,
		numbers:       numbers,
		gateway:       gateway,
		notifier:      notifier,
		fallbackRate:  fallbackRate,
		submitTimeout: submitTimeout,
		log:           log.With().Str("component", "ledger").Logger(),
	}
}

// CreateStages validates and persists a project's payment plan. Percentages
// must sum to exactly 100 and progress thresholds must be non-decreasing.
// Stages with threshold 0 start available, the rest pending.
func (s *Service) CreateStages(ctx context.Context, projectID, companyID uuid.UUID, defs []model.StageDefinition) ([]model.PaymentStage, error) {
	if err := validateDefinitions(defs); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stages := make([]model.PaymentStage, 0, len(defs))
	for i, def := range defs {
		status := model.StageStatusPending
		if def.RequiredProgress == 0 {
			status = model.StageStatusAvailable
		}
		currency := def.Currency
		if currency == "" {
			currency = "USD"
		}
		stages = append(stages, model.PaymentStage{
			ID:               uuid.New(),
			ProjectID:        projectID,
			CompanyID:        companyID,
			Ordinal:          i + 1,
			Name:             def.Name,
			Percentage:       def.Percentage,
			Amount:           def.Amount,
			Currency:         currency,
			RequiredProgress: def.RequiredProgress,
			Status:           status,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	if err := s.stages.CreateStages(ctx, stages); err != nil {
		return nil, fmt.Errorf("create stages: %w", err)
	}

	for _, stage := range stages {
		if stage.Status == model.StageStatusAvailable {
			s.notifier.Notify(ctx, model.Event{
				Type:      model.EventStageAvailable,
				ProjectID: projectID,
				StageID:   stage.ID,
				StageName: stage.Name,
			})
		}
	}
	return stages, nil
}

func validateDefinitions(defs []model.StageDefinition) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: at least one stage is required", ErrValidation)
	}

	sum := 0
	prevThreshold := -1
	for i, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("%w: stage %d has no name", ErrValidation, i+1)
		}
		if def.Percentage < 1 || def.Percentage > 100 {
			return fmt.Errorf("%w: stage %d percentage must be between 1 and 100", ErrValidation, i+1)
		}
		if def.RequiredProgress < 0 || def.RequiredProgress > 100 {
			return fmt.Errorf("%w: stage %d required progress must be between 0 and 100", ErrValidation, i+1)
		}
		if def.RequiredProgress < prevThreshold {
			return fmt.Errorf("%w: progress thresholds must be non-decreasing", ErrValidation)
		}
		if def.Amount.IsNegative() {
			return fmt.Errorf("%w: stage %d amount must not be negative", ErrValidation, i+1)
		}
		prevThreshold = def.RequiredProgress
		sum += def.Percentage
	}
	if sum != 100 {
		return fmt.Errorf("%w: stage percentages sum to %d, must be exactly 100", ErrValidation, sum)
	}
	return nil
}

// OnProjectProgressChanged re-evaluates the project's pending stages. Every
// pending stage whose threshold is reached becomes available, in ordinal
// order, each with a stage_available notification.
func (s *Service) OnProjectProgressChanged(ctx context.Context, projectID uuid.UUID, newProgress int) error {
	if newProgress < 0 || newProgress > 100 {
		return fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
	}

	stages, err := s.stages.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list stages: %w", err)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].Ordinal < stages[j].Ordinal })

	for i := range stages {
		stage := stages[i]
		if stage.Status != model.StageStatusPending || stage.RequiredProgress > newProgress {
			continue
		}

		stage.Status = model.StageStatusAvailable
		stage.UpdatedAt = time.Now().UTC()
		updated, err := s.stages.UpdateStage(ctx, &stage, stage.Version)
		if err != nil {
			return fmt.Errorf("promote stage %s: %w", stage.ID, err)
		}
		if !updated {
			// Another progress update won the race; it will have promoted
			// the stage already.
			s.log.Debug().Str("stage_id", stage.ID.String()).Msg("stage promotion lost race, skipping")
			continue
		}

		s.notifier.Notify(ctx, model.Event{
			Type:      model.EventStageAvailable,
			ProjectID: projectID,
			StageID:   stage.ID,
			StageName: stage.Name,
		})
	}
	return nil
}

// SubmitProof records payment evidence for an available stage and moves it
// to pending verification.
func (s *Service) SubmitProof(ctx context.Context, stageID uuid.UUID, method, evidence, fileRef string) (*model.PaymentStage, error) {
	if method == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrValidation)
	}

	stage, err := s.getStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if stage.Status != model.StageStatusAvailable {
		return nil, fmt.Errorf("%w: cannot submit proof from %s", ErrInvalidTransition, stage.Status)
	}

	stage.Status = model.StageStatusPendingVerification
	stage.PaymentMethod = &method
	if evidence != "" {
		stage.EvidenceNote = &evidence
	}
	if fileRef != "" {
		stage.ProofFileRef = &fileRef
	}
	stage.RejectionReason = nil
	stage.UpdatedAt = time.Now().UTC()

	if err := s.applyUpdate(ctx, stage); err != nil {
		return nil, err
	}
	return stage, nil
}

// Approve confirms a pending verification: the stage becomes paid, the
// current exchange rate is frozen onto it, and invoice issuance is
// triggered. Exactly one of any concurrent approvals wins; the rest get
// ErrStaleState. Invoice issuance failures never roll the stage back.
func (s *Service) Approve(ctx context.Context, stageID uuid.UUID) (*model.PaymentStage, error) {
	stage, err := s.getStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if stage.Status != model.StageStatusPendingVerification {
		return nil, fmt.Errorf("%w: cannot approve from %s", ErrInvalidTransition, stage.Status)
	}

	snapshot := s.currentRate(ctx, stage.Currency)
	now := time.Now().UTC()

	stage.Status = model.StageStatusPaid
	stage.PaidAt = &now
	stage.ExchangeRate = &snapshot.Rate
	stage.ExchangeRateSource = &snapshot.Source
	stage.ExchangeRateAt = &snapshot.FetchedAt
	stage.UpdatedAt = now

	if err := s.applyUpdate(ctx, stage); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, model.Event{
		Type:      model.EventPaymentApproved,
		ProjectID: stage.ProjectID,
		StageID:   stage.ID,
		StageName: stage.Name,
	})

	s.issueInvoice(ctx, stage)
	return stage, nil
}

// Reject returns a pending verification to available. The reason is
// mandatory and forwarded to the notification collaborator.
func (s *Service) Reject(ctx context.Context, stageID uuid.UUID, reason string) (*model.PaymentStage, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	stage, err := s.getStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if stage.Status != model.StageStatusPendingVerification {
		return nil, fmt.Errorf("%w: cannot reject from %s", ErrInvalidTransition, stage.Status)
	}

	stage.Status = model.StageStatusAvailable
	stage.RejectionReason = &reason
	stage.UpdatedAt = time.Now().UTC()

	if err := s.applyUpdate(ctx, stage); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, model.Event{
		Type:      model.EventPaymentRejected,
		ProjectID: stage.ProjectID,
		StageID:   stage.ID,
		StageName: stage.Name,
		Reason:    reason,
	})
	return stage, nil
}

// StagesByProject returns the project's payment plan plus aggregate totals.
func (s *Service) StagesByProject(ctx context.Context, projectID uuid.UUID) ([]model.PaymentStage, model.StageTotals, error) {
	stages, err := s.stages.ListByProject(ctx, projectID)
	if err != nil {
		return nil, model.StageTotals{}, fmt.Errorf("list stages: %w", err)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].Ordinal < stages[j].Ordinal })

	totals := model.StageTotals{TotalAmount: decimal.Zero, PaidAmount: decimal.Zero}
	paidPct := 0
	for _, stage := range stages {
		totals.TotalAmount = totals.TotalAmount.Add(stage.Amount)
		if totals.Currency == "" {
			totals.Currency = stage.Currency
		}
		if stage.Status == model.StageStatusPaid {
			totals.PaidAmount = totals.PaidAmount.Add(stage.Amount)
			paidPct += stage.Percentage
		}
	}
	totals.PaidPercentage = paidPct
	return stages, totals, nil
}

// InvoiceByID returns one invoice with its compliance status and
// verification reference.
func (s *Service) InvoiceByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice %s", ErrNotFound, id)
	}
	return inv, nil
}

func (s *Service) getStage(ctx context.Context, id uuid.UUID) (*model.PaymentStage, error) {
	stage, err := s.stages.GetStage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	if stage == nil {
		return nil, fmt.Errorf("%w: stage %s", ErrNotFound, id)
	}
	return stage, nil
}

func (s *Service) applyUpdate(ctx context.Context, stage *model.PaymentStage) error {
	updated, err := s.stages.UpdateStage(ctx, stage, stage.Version)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	if !updated {
		return ErrStaleState
	}
	stage.Version++
	return nil
}

// currentRate resolves the rate snapshot to freeze onto an approved stage.
// Rate-source failures are non-fatal: the last persisted configured rate is
// used so a dead feed never blocks a payment approval.
func (s *Service) currentRate(ctx context.Context, currency string) model.ExchangeRateSnapshot {
	if currency == "PYG" {
		return model.ExchangeRateSnapshot{
			Rate:      decimal.NewFromInt(1),
			Source:    "local",
			FetchedAt: time.Now().UTC(),
		}
	}

	snapshot, err := s.rates.FetchCurrent(ctx)
	if err != nil {
		if !errors.Is(err, exchange.ErrRateUnavailable) {
			s.log.Error().Err(err).Msg("rate resolution failed")
		}
		s.log.Warn().Str("fallback_rate", s.fallbackRate.String()).Msg("no rate available, using configured fallback")
		return model.ExchangeRateSnapshot{
			Rate:      s.fallbackRate,
			Source:    "configured",
			FetchedAt: time.Now().UTC(),
		}
	}
	return snapshot
}

// issueInvoice builds and submits the tax document for a freshly paid
// stage. The document number is reserved and committed before submission is
// attempted; a failed submission leaves a numbering gap, never a duplicate.
// Nothing here may fail the approval: every outcome is recorded on the
// invoice and logged for the operator.
func (s *Service) issueInvoice(ctx context.Context, stage *model.PaymentStage) {
	log := s.log.With().Str("stage_id", stage.ID.String()).Logger()

	company, err := s.profiles.CompanyByID(ctx, stage.CompanyID)
	if err != nil || company == nil {
		log.Error().Err(err).Msg("company profile unavailable, invoice not issued")
		return
	}
	client, err := s.profiles.ClientByProject(ctx, stage.ProjectID)
	if err != nil || client == nil {
		log.Error().Err(err).Msg("client profile unavailable, invoice not issued")
		return
	}

	number, err := s.numbers.ReserveNext(ctx, *company)
	if err != nil {
		log.Error().Err(err).Msg("document number reservation failed, invoice not issued")
		return
	}

	inv, err := s.builder.Build(ctx, *company, *client, *stage, number)
	if err != nil {
		log.Error().Err(err).Str("number", number.Formatted).Msg("invoice build failed, reserved number left as gap")
		return
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		log.Error().Err(err).Str("number", inv.Number).Msg("invoice persistence failed")
		return
	}

	s.notifier.Notify(ctx, model.Event{
		Type:      model.EventInvoiceGenerated,
		ProjectID: stage.ProjectID,
		StageID:   stage.ID,
		InvoiceID: &inv.ID,
		StageName: stage.Name,
	})

	s.submitInvoice(ctx, inv, log)
}

func (s *Service) submitInvoice(ctx context.Context, inv *model.Invoice, log zerolog.Logger) {
	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	result, err := s.gateway.Submit(submitCtx, inv.RawDocument)
	switch {
	case err == nil:
		if _, markErr := s.invoices.MarkAccepted(ctx, inv.ID, result.CDC, result.ProtocolID, result.VerificationURL); markErr != nil {
			log.Error().Err(markErr).Str("invoice_id", inv.ID.String()).Msg("invoice accepted but status update failed")
			return
		}
		log.Info().Str("invoice_id", inv.ID.String()).Str("cdc", result.CDC).Msg("invoice accepted by certification gateway")

	case errors.Is(err, sifen.ErrGatewayRejected):
		var rejection *sifen.RejectionError
		code, message := "", err.Error()
		if errors.As(err, &rejection) {
			code, message = rejection.Code, rejection.Message
		}
		if _, markErr := s.invoices.MarkRejected(ctx, inv.ID, code, message); markErr != nil {
			log.Error().Err(markErr).Str("invoice_id", inv.ID.String()).Msg("invoice rejection recording failed")
			return
		}
		log.Warn().Str("invoice_id", inv.ID.String()).Str("code", code).Str("reason", message).Msg("invoice rejected by certification gateway")

	default:
		// Unreachable or timed out: the invoice stays pending for manual
		// follow-up. No automatic retry; an ambiguous in-flight state must
		// never turn into a duplicate legal filing.
		log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("gateway unreachable, invoice left pending")
	}
}
