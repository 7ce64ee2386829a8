// Package invoice assembles legally valid electronic tax documents from a
// paid payment stage and the company/client billing profiles.
package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dbritez/consultora-billing/internal/catalog"
	"github.com/dbritez/consultora-billing/internal/model"
	"github.com/dbritez/consultora-billing/internal/sequence"
)

var (
	// ErrUnsupportedTaxRate: only 0, 5 and 10 percent exist under the VAT
	// regime. Any other configured percentage is a profile mistake that
	// must be fixed by an operator, not silently coerced to exempt.
	ErrUnsupportedTaxRate = errors.New("unsupported tax percentage")

	ErrMissingRate = errors.New("stage has no frozen exchange rate")
)

type LocationResolver interface {
	Resolve(ctx context.Context, department, city string) (catalog.Location, error)
}

type Builder struct {
	locations LocationResolver
	log       zerolog.Logger
}

func NewBuilder(locations LocationResolver, log zerolog.Logger) *Builder {
	return &Builder{
		locations: locations,
		log:       log.With().Str("component", "invoice-builder").Logger(),
	}
}

// Build creates the invoice record and its gateway payload for a paid stage.
// The stage's frozen exchange rate converts the amount to guaraníes; client
// identity and the issuance timestamp are copied onto the invoice as
// immutable snapshots.
func (b *Builder) Build(
	ctx context.Context,
	company model.CompanyProfile,
	client model.ClientProfile,
	stage model.PaymentStage,
	number sequence.ReservedNumber,
) (*model.Invoice, error) {
	rate, err := stageRate(stage)
	if err != nil {
		return nil, err
	}

	// The local currency has no fractional subunit: whole guaraníes only.
	gross := stage.Amount.Mul(rate).Round(0).IntPart()

	base, tax, err := splitTax(gross, company.TaxPercentage)
	if err != nil {
		return nil, err
	}

	location, err := b.locations.Resolve(ctx, client.Department, client.City)
	if err != nil {
		return nil, fmt.Errorf("resolve client location: %w", err)
	}

	issuedAt := time.Now().UTC()

	inv := &model.Invoice{
		ID:             uuid.New(),
		StageID:        &stage.ID,
		ProjectID:      stage.ProjectID,
		CompanyID:      company.ID,
		Number:         number.Formatted,
		SequenceValue:  number.Value,
		AmountSource:   stage.Amount,
		SourceCurrency: stage.Currency,
		ExchangeRate:   rate,
		AmountLocal:    gross,
		TaxRate:        company.TaxPercentage,
		TaxBase:        base,
		TaxAmount:      tax,
		Status:         model.InvoiceStatusPending,

		ClientName:           truncate(client.LegalName, maxLenName),
		ClientRUC:            client.RUC,
		ClientAddress:        truncate(client.Address, maxLenAddress),
		ClientDepartmentCode: location.DepartmentCode,
		ClientCityCode:       location.CityCode,

		IssuedAt: issuedAt,
	}
	if email := truncate(client.Email, maxLenEmail); email != "" {
		inv.ClientEmail = &email
	}
	if phone := truncate(client.Phone, maxLenPhone); phone != "" {
		inv.ClientPhone = &phone
	}

	payload := b.buildPayload(company, client, stage, inv, location, issuedAt)
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	inv.RawDocument = raw

	return inv, nil
}

func (b *Builder) buildPayload(
	company model.CompanyProfile,
	client model.ClientProfile,
	stage model.PaymentStage,
	inv *model.Invoice,
	location catalog.Location,
	issuedAt time.Time,
) Fields {
	fields := Fields{}

	fields.Set("document_type", documentType(inv.TaxRate), 0)
	fields.Set("document_number", inv.Number, 0)
	fields.Set("issue_date", issuedAt.Format(time.RFC3339), 0)

	fields.Set("company_ruc", company.RUC, 0)
	fields.Set("company_name", company.LegalName, maxLenName)
	fields.Set("company_timbrado", company.Timbrado, 0)
	fields.Set("company_establishment", company.EstablishmentCode, 0)
	fields.Set("company_point", company.PointCode, 0)
	fields.Set("company_address", company.Address, maxLenAddress)
	fields.Set("company_email", company.Email, maxLenEmail)
	fields.Set("company_phone", company.Phone, maxLenPhone)

	fields.Set("client_ruc", client.RUC, 0)
	fields.Set("client_name", client.LegalName, maxLenName)
	fields.Set("client_address", client.Address, maxLenAddress)
	fields.SetInt("client_department", int64(location.DepartmentCode))
	fields.SetInt("client_city", int64(location.CityCode))
	fields.Set("client_email", client.Email, maxLenEmail)
	fields.Set("client_phone", client.Phone, maxLenPhone)

	fields.Set("description", fmt.Sprintf("Pago de etapa: %s", stage.Name), maxLenDescription)
	fields.SetInt("total", inv.AmountLocal)
	fields.SetInt("tax_rate", int64(inv.TaxRate))
	fields.SetInt("tax_base", inv.TaxBase)
	fields.SetInt("tax_amount", inv.TaxAmount)
	fields.Set("currency", "PYG", 0)
	fields.Set("source_currency", stage.Currency, 0)
	fields.Set("source_amount", stage.Amount.String(), 0)
	fields.Set("exchange_rate", inv.ExchangeRate.String(), 0)

	return fields
}

func stageRate(stage model.PaymentStage) (decimal.Decimal, error) {
	if stage.Currency == "PYG" {
		return decimal.NewFromInt(1), nil
	}
	if stage.ExchangeRate == nil || stage.ExchangeRate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrMissingRate
	}
	return *stage.ExchangeRate, nil
}

// splitTax derives the tax base and tax amount from the tax-inclusive gross.
// 0% means exempt: the full gross is the base. For 5% and 10% the base is
// gross/(1+rate) rounded to whole guaraníes; the tax is the remainder, so
// base+tax reproduces the gross exactly.
func splitTax(gross int64, taxPercentage int) (base, tax int64, err error) {
	switch taxPercentage {
	case 0:
		return gross, 0, nil
	case 5, 10:
		grossDec := decimal.NewFromInt(gross)
		divisor := decimal.NewFromInt(100 + int64(taxPercentage)).Div(decimal.NewFromInt(100))
		base = grossDec.Div(divisor).Round(0).IntPart()
		return base, gross - base, nil
	default:
		return 0, 0, fmt.Errorf("%w: %d%%", ErrUnsupportedTaxRate, taxPercentage)
	}
}

func documentType(taxPercentage int) string {
	if taxPercentage == 0 {
		return "FACTURA_EXENTA"
	}
	return "FACTURA"
}
