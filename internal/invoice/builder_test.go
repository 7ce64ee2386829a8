package invoice

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbritez/consultora-billing/internal/catalog"
	"github.com/dbritez/consultora-billing/internal/model"
	"github.com/dbritez/consultora-billing/internal/sequence"
)

type stubLocations struct {
	location catalog.Location
}

func (s *stubLocations) Resolve(ctx context.Context, department, city string) (catalog.Location, error) {
	return s.location, nil
}

func newTestBuilder() *Builder {
	return NewBuilder(&stubLocations{location: catalog.Location{
		DepartmentCode: 11,
		DepartmentName: "Central",
		CityCode:       204,
		CityName:       "San Lorenzo",
	}}, zerolog.Nop())
}

func testCompany(taxPercentage int) model.CompanyProfile {
	return model.CompanyProfile{
		ID:                uuid.New(),
		LegalName:         "Consultora de Software SRL",
		RUC:               "80012345-6",
		Timbrado:          "12345678",
		EstablishmentCode: "001",
		PointCode:         "001",
		Address:           "Avda. Mariscal López 1234",
		TaxPercentage:     taxPercentage,
	}
}

func testClient() model.ClientProfile {
	return model.ClientProfile{
		ID:         uuid.New(),
		LegalName:  "Cliente Industrial SA",
		RUC:        "80098765-4",
		Address:    "Ruta 2 km 20",
		Department: "Central",
		City:       "San Lorenzo",
		Email:      "pagos@cliente.com.py",
	}
}

func localStage(amount int64) model.PaymentStage {
	return model.PaymentStage{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		Name:      "Entrega final",
		Amount:    decimal.NewFromInt(amount),
		Currency:  "PYG",
	}
}

func reserved(value int64) sequence.ReservedNumber {
	return sequence.ReservedNumber{Value: value, Formatted: sequence.Format("001", "001", value)}
}

func TestBuildTaxSplitTenPercent(t *testing.T) {
	b := newTestBuilder()

	inv, err := b.Build(context.Background(), testCompany(10), testClient(), localStage(770000), reserved(1))
	require.NoError(t, err)

	assert.Equal(t, int64(770000), inv.AmountLocal)
	assert.Equal(t, int64(700000), inv.TaxBase)
	assert.Equal(t, int64(70000), inv.TaxAmount)
	assert.Equal(t, model.InvoiceStatusPending, inv.Status)
}

func TestBuildTaxSplitExempt(t *testing.T) {
	b := newTestBuilder()

	inv, err := b.Build(context.Background(), testCompany(0), testClient(), localStage(500000), reserved(1))
	require.NoError(t, err)

	assert.Equal(t, int64(500000), inv.TaxBase)
	assert.Equal(t, int64(0), inv.TaxAmount)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(inv.RawDocument, &doc))
	assert.Equal(t, "FACTURA_EXENTA", doc["document_type"])
}

func TestBuildTaxSplitFivePercent(t *testing.T) {
	b := newTestBuilder()

	inv, err := b.Build(context.Background(), testCompany(5), testClient(), localStage(105000), reserved(1))
	require.NoError(t, err)

	assert.Equal(t, int64(100000), inv.TaxBase)
	assert.Equal(t, int64(5000), inv.TaxAmount)
	// Base plus tax always reproduces the gross.
	assert.Equal(t, inv.AmountLocal, inv.TaxBase+inv.TaxAmount)
}

func TestBuildUnsupportedTaxRate(t *testing.T) {
	b := newTestBuilder()

	_, err := b.Build(context.Background(), testCompany(7), testClient(), localStage(100000), reserved(1))
	require.ErrorIs(t, err, ErrUnsupportedTaxRate)
}

func TestBuildConvertsWithFrozenRate(t *testing.T) {
	b := newTestBuilder()

	rate := decimal.RequireFromString("7350.25")
	stage := model.PaymentStage{
		ID:           uuid.New(),
		ProjectID:    uuid.New(),
		Name:         "Anticipo",
		Amount:       decimal.RequireFromString("1000.50"),
		Currency:     "USD",
		ExchangeRate: &rate,
	}

	inv, err := b.Build(context.Background(), testCompany(10), testClient(), stage, reserved(7))
	require.NoError(t, err)

	// 1000.50 * 7350.25 = 7353925.125, rounded to whole guaraníes.
	assert.Equal(t, int64(7353925), inv.AmountLocal)
	assert.True(t, inv.ExchangeRate.Equal(rate))
	assert.Equal(t, "001-001-0000007", inv.Number)
}

func TestBuildForeignCurrencyWithoutRateFails(t *testing.T) {
	b := newTestBuilder()

	stage := model.PaymentStage{
		ID:       uuid.New(),
		Amount:   decimal.NewFromInt(1000),
		Currency: "USD",
	}
	_, err := b.Build(context.Background(), testCompany(10), testClient(), stage, reserved(1))
	require.ErrorIs(t, err, ErrMissingRate)
}

func TestBuildOmitsEmptyOptionalFields(t *testing.T) {
	b := newTestBuilder()

	client := testClient()
	client.Email = ""
	client.Phone = "   "

	inv, err := b.Build(context.Background(), testCompany(10), client, localStage(100000), reserved(1))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(inv.RawDocument, &doc))

	_, hasEmail := doc["client_email"]
	_, hasPhone := doc["client_phone"]
	assert.False(t, hasEmail, "empty email must be omitted, not sent as empty string")
	assert.False(t, hasPhone, "blank phone must be omitted, not sent as empty string")

	assert.Nil(t, inv.ClientEmail)
	assert.Nil(t, inv.ClientPhone)
}

func TestBuildTruncatesLongFields(t *testing.T) {
	b := newTestBuilder()

	client := testClient()
	client.LegalName = strings.Repeat("Cliente con razón social larguísima ", 5)

	inv, err := b.Build(context.Background(), testCompany(10), client, localStage(100000), reserved(1))
	require.NoError(t, err)

	assert.LessOrEqual(t, len([]rune(inv.ClientName)), 60)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(inv.RawDocument, &doc))
	assert.LessOrEqual(t, len([]rune(doc["client_name"].(string))), 60)
}

func TestBuildSnapshotIsIndependentOfLiveProfile(t *testing.T) {
	b := newTestBuilder()

	client := testClient()
	inv, err := b.Build(context.Background(), testCompany(10), client, localStage(100000), reserved(1))
	require.NoError(t, err)

	// Later profile edits must never leak into the issued document.
	client.LegalName = "Razón social nueva"
	client.Address = "Dirección nueva"

	assert.Equal(t, "Cliente Industrial SA", inv.ClientName)
	assert.Equal(t, "Ruta 2 km 20", inv.ClientAddress)
	assert.Equal(t, 11, inv.ClientDepartmentCode)
	assert.Equal(t, 204, inv.ClientCityCode)
	assert.False(t, inv.IssuedAt.IsZero())
}

func TestFieldsSetTrimsAndBounds(t *testing.T) {
	fields := Fields{}
	fields.Set("a", "  valor  ", 0)
	fields.Set("b", "   ", 0)
	fields.Set("c", "abcdef", 3)

	assert.Equal(t, "valor", fields["a"])
	_, present := fields["b"]
	assert.False(t, present)
	assert.Equal(t, "abc", fields["c"])
}
