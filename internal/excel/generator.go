// Package excel exports a project's payment schedule as a workbook.
package excel

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/dbritez/consultora-billing/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(projectID uuid.UUID, stages []model.PaymentStage, totals model.StageTotals) ([]byte, error) {
	file := excelize.NewFile()

	sheet := "Cronograma"
	file.SetSheetName("Sheet1", sheet)

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Proyecto")
	set("B1", projectID.String())
	set("A2", "Monto total")
	set("B2", totals.TotalAmount.String())
	set("A3", "Monto pagado")
	set("B3", totals.PaidAmount.String())
	set("A4", "Porcentaje pagado")
	set("B4", totals.PaidPercentage)
	set("A5", "Moneda")
	set("B5", totals.Currency)

	headerRow := 7
	headers := []string{"Etapa", "Porcentaje", "Monto", "Avance requerido", "Estado", "Método de pago", "Fecha de pago", "Cambio aplicado"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		set(cell, header)
	}

	for i, stage := range stages {
		row := headerRow + 1 + i
		set(fmt.Sprintf("A%d", row), stage.Name)
		set(fmt.Sprintf("B%d", row), stage.Percentage)
		set(fmt.Sprintf("C%d", row), stage.Amount.String())
		set(fmt.Sprintf("D%d", row), stage.RequiredProgress)
		set(fmt.Sprintf("E%d", row), string(stage.Status))
		if stage.PaymentMethod != nil {
			set(fmt.Sprintf("F%d", row), *stage.PaymentMethod)
		}
		if stage.PaidAt != nil {
			set(fmt.Sprintf("G%d", row), formatDate(*stage.PaidAt))
		}
		if stage.ExchangeRate != nil {
			set(fmt.Sprintf("H%d", row), stage.ExchangeRate.String())
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 35)
	_ = file.SetColWidth(sheet, "B", "H", 18)

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
