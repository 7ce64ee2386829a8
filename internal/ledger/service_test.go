package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbritez/consultora-billing/internal/exchange"
	"github.com/dbritez/consultora-billing/internal/model"
	"github.com/dbritez/consultora-billing/internal/sequence"
	"github.com/dbritez/consultora-billing/internal/sifen"
)

type stubStageStore struct {
	mu       sync.Mutex
	stages   map[uuid.UUID]*model.PaymentStage
	loseNext bool
}

func newStubStageStore() *stubStageStore {
	return &stubStageStore{stages: make(map[uuid.UUID]*model.PaymentStage)}
}

func (s *stubStageStore) CreateStages(ctx context.Context, stages []model.PaymentStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range stages {
		copied := stages[i]
		s.stages[copied.ID] = &copied
	}
	return nil
}

func (s *stubStageStore) GetStage(ctx context.Context, id uuid.UUID) (*model.PaymentStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stage, ok := s.stages[id]
	if !ok {
		return nil, nil
	}
	copied := *stage
	return &copied, nil
}

func (s *stubStageStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.PaymentStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.PaymentStage
	for _, stage := range s.stages {
		if stage.ProjectID == projectID {
			result = append(result, *stage)
		}
	}
	return result, nil
}

func (s *stubStageStore) UpdateStage(ctx context.Context, stage *model.PaymentStage, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loseNext {
		s.loseNext = false
		return false, nil
	}
	current, ok := s.stages[stage.ID]
	if !ok || current.Version != expectedVersion {
		return false, nil
	}
	copied := *stage
	copied.Version = expectedVersion + 1
	s.stages[stage.ID] = &copied
	return true, nil
}

type stubInvoiceStore struct {
	mu       sync.Mutex
	created  []*model.Invoice
	accepted map[uuid.UUID]string
	rejected map[uuid.UUID]string
}

func newStubInvoiceStore() *stubInvoiceStore {
	return &stubInvoiceStore{
		accepted: make(map[uuid.UUID]string),
		rejected: make(map[uuid.UUID]string),
	}
}

func (s *stubInvoiceStore) Create(ctx context.Context, inv *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *inv
	s.created = append(s.created, &copied)
	return nil
}

func (s *stubInvoiceStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.created {
		if inv.ID == id {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubInvoiceStore) MarkAccepted(ctx context.Context, id uuid.UUID, cdc, protocolID, verificationURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted[id] = cdc
	return true, nil
}

func (s *stubInvoiceStore) MarkRejected(ctx context.Context, id uuid.UUID, code, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[id] = code
	return true, nil
}

type stubProfiles struct {
	company *model.CompanyProfile
	client  *model.ClientProfile
}

func (s *stubProfiles) CompanyByID(ctx context.Context, id uuid.UUID) (*model.CompanyProfile, error) {
	return s.company, nil
}

func (s *stubProfiles) ClientByProject(ctx context.Context, projectID uuid.UUID) (*model.ClientProfile, error) {
	return s.client, nil
}

type stubRates struct {
	snapshot model.ExchangeRateSnapshot
	err      error
}

func (s *stubRates) FetchCurrent(ctx context.Context) (model.ExchangeRateSnapshot, error) {
	return s.snapshot, s.err
}

type stubBuilder struct {
	err error
}

func (s *stubBuilder) Build(ctx context.Context, company model.CompanyProfile, client model.ClientProfile, stage model.PaymentStage, number sequence.ReservedNumber) (*model.Invoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Invoice{
		ID:          uuid.New(),
		StageID:     &stage.ID,
		ProjectID:   stage.ProjectID,
		CompanyID:   company.ID,
		Number:      number.Formatted,
		Status:      model.InvoiceStatusPending,
		RawDocument: []byte(`{}`),
	}, nil
}

type stubNumbers struct {
	mu   sync.Mutex
	next int64
}

func (s *stubNumbers) ReserveNext(ctx context.Context, company model.CompanyProfile) (sequence.ReservedNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return sequence.ReservedNumber{Value: s.next, Formatted: sequence.Format("001", "001", s.next)}, nil
}

type stubGateway struct {
	result *sifen.SubmitResult
	err    error
}

func (s *stubGateway) Submit(ctx context.Context, document []byte) (*sifen.SubmitResult, error) {
	return s.result, s.err
}

type stubNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *stubNotifier) Notify(ctx context.Context, event model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *stubNotifier) byType(t model.EventType) []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Event
	for _, e := range s.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

type fixture struct {
	svc      *Service
	stages   *stubStageStore
	invoices *stubInvoiceStore
	rates    *stubRates
	builder  *stubBuilder
	gateway  *stubGateway
	notifier *stubNotifier
}

func newFixture() *fixture {
	f := &fixture{
		stages:   newStubStageStore(),
		invoices: newStubInvoiceStore(),
		rates: &stubRates{snapshot: model.ExchangeRateSnapshot{
			Rate:      decimal.RequireFromString("7350.25"),
			Source:    "dolarpy",
			FetchedAt: time.Now().UTC(),
		}},
		builder: &stubBuilder{},
		gateway: &stubGateway{result: &sifen.SubmitResult{
			CDC:             "0180123456789",
			ProtocolID:      "lot-1",
			VerificationURL: "https://ekuatia.set.gov.py/consultas/qr?cdc=0180123456789",
		}},
		notifier: &stubNotifier{},
	}
	profiles := &stubProfiles{
		company: &model.CompanyProfile{ID: uuid.New(), LegalName: "Consultora SRL", TaxPercentage: 10},
		client:  &model.ClientProfile{ID: uuid.New(), LegalName: "Cliente SA"},
	}
	f.svc = NewService(
		f.stages, f.invoices, profiles, f.rates, f.builder, &stubNumbers{}, f.gateway, f.notifier,
		decimal.RequireFromString("7300"), time.Second, zerolog.Nop(),
	)
	return f
}

func defaultDefinitions() []model.StageDefinition {
	amount := decimal.NewFromInt(1000)
	return []model.StageDefinition{
		{Name: "Anticipo", Percentage: 25, Amount: amount, Currency: "USD", RequiredProgress: 0},
		{Name: "Primera entrega", Percentage: 25, Amount: amount, Currency: "USD", RequiredProgress: 25},
		{Name: "Segunda entrega", Percentage: 25, Amount: amount, Currency: "USD", RequiredProgress: 50},
		{Name: "Entrega final", Percentage: 25, Amount: amount, Currency: "USD", RequiredProgress: 75},
	}
}

func TestCreateStagesPercentagesMustSumTo100(t *testing.T) {
	f := newFixture()
	defs := defaultDefinitions()
	defs[3].Percentage = 20

	_, err := f.svc.CreateStages(context.Background(), uuid.New(), uuid.New(), defs)
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.stages.stages)
}

func TestCreateStagesThresholdsMustBeNonDecreasing(t *testing.T) {
	f := newFixture()
	defs := defaultDefinitions()
	defs[2].RequiredProgress = 10

	_, err := f.svc.CreateStages(context.Background(), uuid.New(), uuid.New(), defs)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateStagesFirstStageAvailable(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()

	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)
	require.Len(t, stages, 4)

	assert.Equal(t, model.StageStatusAvailable, stages[0].Status)
	for _, stage := range stages[1:] {
		assert.Equal(t, model.StageStatusPending, stage.Status)
	}

	events := f.notifier.byType(model.EventStageAvailable)
	require.Len(t, events, 1)
	assert.Equal(t, stages[0].ID, events[0].StageID)
}

func TestProgressPromotesStagesInOrder(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)

	for _, progress := range []int{0, 10, 25, 60, 80} {
		require.NoError(t, f.svc.OnProjectProgressChanged(context.Background(), projectID, progress))
	}

	events := f.notifier.byType(model.EventStageAvailable)
	// Creation promoted the threshold-0 stage; progress updates promoted 25 and 50.
	require.Len(t, events, 3)
	assert.Equal(t, stages[0].ID, events[0].StageID)
	assert.Equal(t, stages[1].ID, events[1].StageID)
	assert.Equal(t, stages[2].ID, events[2].StageID)

	final, _ := f.stages.GetStage(context.Background(), stages[3].ID)
	assert.Equal(t, model.StageStatusPending, final.Status)
}

func TestApproveOnlyFromPendingVerification(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)

	// Directly from AVAILABLE.
	_, err = f.svc.Approve(context.Background(), stages[0].ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Directly from PENDING.
	_, err = f.svc.Approve(context.Background(), stages[1].ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitProofOnlyFromAvailable(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)

	_, err = f.svc.SubmitProof(context.Background(), stages[1].ID, "transferencia", "ref 123", "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	stage, err := f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "ref 123", "proof/1.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusPendingVerification, stage.Status)

	// Second submission on the same stage is illegal.
	_, err = f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "ref 456", "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApproveFreezesRateAndIssuesInvoice(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)

	_, err = f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "", "")
	require.NoError(t, err)

	stage, err := f.svc.Approve(context.Background(), stages[0].ID)
	require.NoError(t, err)

	assert.Equal(t, model.StageStatusPaid, stage.Status)
	require.NotNil(t, stage.PaidAt)
	require.NotNil(t, stage.ExchangeRate)
	assert.True(t, stage.ExchangeRate.Equal(decimal.RequireFromString("7350.25")))
	assert.Equal(t, "dolarpy", *stage.ExchangeRateSource)

	require.Len(t, f.invoices.created, 1)
	inv := f.invoices.created[0]
	assert.Equal(t, "001-001-0000001", inv.Number)
	assert.Contains(t, f.invoices.accepted, inv.ID)

	require.Len(t, f.notifier.byType(model.EventPaymentApproved), 1)
	require.Len(t, f.notifier.byType(model.EventInvoiceGenerated), 1)
}

func TestApproveUsesFallbackRateWhenProvidersFail(t *testing.T) {
	f := newFixture()
	f.rates.err = exchange.ErrRateUnavailable

	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "", "")
	require.NoError(t, err)

	stage, err := f.svc.Approve(context.Background(), stages[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stage.ExchangeRate)
	assert.True(t, stage.ExchangeRate.Equal(decimal.RequireFromString("7300")))
	assert.Equal(t, "configured", *stage.ExchangeRateSource)
}

func TestApproveGatewayUnreachableLeavesStagePaid(t *testing.T) {
	f := newFixture()
	f.gateway.result = nil
	f.gateway.err = sifen.ErrGatewayUnreachable

	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "", "")
	require.NoError(t, err)

	stage, err := f.svc.Approve(context.Background(), stages[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusPaid, stage.Status)

	// Invoice exists, stays pending for manual follow-up.
	require.Len(t, f.invoices.created, 1)
	assert.Empty(t, f.invoices.accepted)
	assert.Empty(t, f.invoices.rejected)
}

func TestApproveGatewayRejectionRecordsReason(t *testing.T) {
	f := newFixture()
	f.gateway.result = nil
	f.gateway.err = &sifen.RejectionError{Code: "160", Message: "RUC inválido"}

	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "", "")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), stages[0].ID)
	require.NoError(t, err)

	require.Len(t, f.invoices.created, 1)
	assert.Equal(t, "160", f.invoices.rejected[f.invoices.created[0].ID])
}

func TestApproveLostRaceReturnsStaleState(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "", "")
	require.NoError(t, err)

	f.stages.loseNext = true
	_, err = f.svc.Approve(context.Background(), stages[0].ID)
	require.ErrorIs(t, err, ErrStaleState)

	// No invoice was issued for the losing attempt.
	assert.Empty(t, f.invoices.created)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "", "")
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), stages[0].ID, "")
	require.ErrorIs(t, err, ErrValidation)

	stage, err := f.svc.Reject(context.Background(), stages[0].ID, "comprobante ilegible")
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusAvailable, stage.Status)

	events := f.notifier.byType(model.EventPaymentRejected)
	require.Len(t, events, 1)
	assert.Equal(t, "comprobante ilegible", events[0].Reason)
}

func TestStagesByProjectTotals(t *testing.T) {
	f := newFixture()
	projectID := uuid.New()
	stages, err := f.svc.CreateStages(context.Background(), projectID, uuid.New(), defaultDefinitions())
	require.NoError(t, err)

	_, err = f.svc.SubmitProof(context.Background(), stages[0].ID, "transferencia", "", "")
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), stages[0].ID)
	require.NoError(t, err)

	listed, totals, err := f.svc.StagesByProject(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, listed, 4)
	assert.True(t, totals.TotalAmount.Equal(decimal.NewFromInt(4000)))
	assert.True(t, totals.PaidAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 25, totals.PaidPercentage)
}

func TestInvoiceByIDNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.InvoiceByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateStagesRejectsEmptyPlan(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateStages(context.Background(), uuid.New(), uuid.New(), nil)
	require.True(t, errors.Is(err, ErrValidation))
}
