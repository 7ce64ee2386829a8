// Package pdf renders the printable representation of an electronic
// invoice (KuDE). The layout is driven by the document that was actually
// submitted to the gateway, so the rendering always matches the filing.
package pdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/dbritez/consultora-billing/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() (*Generator, error) {
	return &Generator{fontName: "Helvetica"}, nil
}

func (g *Generator) Generate(inv model.Invoice) ([]byte, error) {
	var doc map[string]interface{}
	if len(inv.RawDocument) > 0 {
		if err := json.Unmarshal(inv.RawDocument, &doc); err != nil {
			return nil, fmt.Errorf("parse stored document: %w", err)
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, tr(docString(doc, "document_type", "FACTURA")), "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Factura N° %s del %s", inv.Number, formatDate(inv.IssuedAt))), "", 1, "C", false, 0, "")
	if timbrado := docString(doc, "company_timbrado", ""); timbrado != "" {
		pdf.CellFormat(0, 6, tr("Timbrado N° "+timbrado), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	addPartyBlock(pdf, tr, g.fontName, "Emisor",
		docString(doc, "company_name", ""),
		docString(doc, "company_ruc", ""),
		docString(doc, "company_address", ""),
		docString(doc, "company_phone", ""),
	)
	pdf.Ln(2)
	addPartyBlock(pdf, tr, g.fontName, "Cliente",
		inv.ClientName,
		inv.ClientRUC,
		inv.ClientAddress,
		derefString(inv.ClientPhone),
	)
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, tr("Detalle"), "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)

	headers := []string{"Descripción", "Moneda origen", "Monto origen", "Cambio", "Total Gs."}
	colWidths := []float64{70, 25, 30, 25, 30}
	drawTableRow(pdf, tr, g.fontName, headers, colWidths, true)

	row := []string{
		docString(doc, "description", "Pago de etapa"),
		inv.SourceCurrency,
		inv.AmountSource.String(),
		inv.ExchangeRate.String(),
		formatGuaranies(inv.AmountLocal),
	}
	drawTableRow(pdf, tr, g.fontName, row, colWidths, false)

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "", 11)
	if inv.TaxRate == 0 {
		pdf.CellFormat(0, 6, tr("Operación exenta de IVA"), "", 1, "R", false, 0, "")
	} else {
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Base gravada (%d%%): %s Gs.", inv.TaxRate, formatGuaranies(inv.TaxBase))), "", 1, "R", false, 0, "")
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("IVA (%d%%): %s Gs.", inv.TaxRate, formatGuaranies(inv.TaxAmount))), "", 1, "R", false, 0, "")
	}
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Total: %s Gs.", formatGuaranies(inv.AmountLocal))), "", 1, "R", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, tr("Estado de certificación"), "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, tr("Estado: "+statusLabel(inv.Status)), "", 1, "L", false, 0, "")
	if inv.CDC != nil {
		pdf.CellFormat(0, 6, tr("CDC: "+*inv.CDC), "", 1, "L", false, 0, "")
	}
	if inv.VerificationURL != nil {
		pdf.MultiCell(0, 6, tr("Consulta: "+*inv.VerificationURL), "", "L", false)
	}
	if inv.RejectionReason != nil {
		pdf.SetTextColor(200, 0, 0)
		pdf.MultiCell(0, 6, tr("Rechazo: "+*inv.RejectionReason), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addPartyBlock(pdf *gofpdf.Fpdf, tr func(string) string, fontName, title, name, ruc, address, phone string) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		safeValue(name),
		"RUC: " + safeValue(ruc),
		tr("Dirección: " + safeValue(address)),
		tr("Teléfono: " + safeValue(phone)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func statusLabel(status model.InvoiceStatus) string {
	switch status {
	case model.InvoiceStatusAccepted:
		return "Aprobado"
	case model.InvoiceStatusRejected:
		return "Rechazado"
	default:
		return "Pendiente"
	}
}

func docString(doc map[string]interface{}, key, fallback string) string {
	if doc == nil {
		return fallback
	}
	if value, ok := doc[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "—"
	}
	return value
}

// formatGuaranies renders a whole-guaraní amount with dot thousands
// separators, local convention.
func formatGuaranies(value int64) string {
	digits := strconv.FormatInt(value, 10)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}

	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)

	result := strings.Join(parts, ".")
	if negative {
		result = "-" + result
	}
	return result
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("02/01/2006")
}
