package infra

// pdf.go — in-process PDF generation using go-pdf/fpdf.
// Two documents come out of here:
//   - Packet labels (58×40mm thermal label stock), the fallback path when
//     the label-render sidecar is down.
//   - Supplier return slips (A4), attached to the notification email after
//     a return adjustment commits.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"packline/internal/dto"
	"packline/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateLabelPDF renders a plain-text packet label. It carries the same
// data as the sidecar's template but without the scannable barcode font, so
// it is readable at the counter until the sidecar recovers.
// Returns the absolute path to the generated file.
func GenerateLabelPDF(p *model.PacketStock, productName, supplierName, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("label_%s.pdf", p.Barcode)
	filePath := filepath.Join(storagePath, fileName)

	// 58×40mm — standard thermal label stock (custom size, not in fpdf's named list)
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 58, Ht: 40},
	})
	pdf.SetMargins(3, 3, 3)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 6

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 5, p.Barcode, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	name := productName
	if len(name) > 28 {
		name = name[:27] + "…"
	}
	pdf.CellFormat(contentW, 4, name, "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 3, supplierName, "", 1, "C", false, 0, "")

	pdf.Line(3, pdf.GetY()+1, pageW-3, pdf.GetY()+1)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 6)
	for _, entry := range p.Composition {
		line := fmt.Sprintf("%s / %s  x%d", entry.Size, entry.Color, entry.Quantity)
		pdf.CellFormat(contentW, 3, line, "", 1, "L", false, 0, "")
	}

	pdf.Ln(1)
	pdf.SetFont("Helvetica", "B", 8)
	unit := "packet"
	if p.IsLoose {
		unit = "item"
	}
	price := fmt.Sprintf("$%s / %s", p.SuggestedSellingPrice.StringFixed(2), unit)
	pdf.CellFormat(contentW, 4, price, "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}

// GenerateReturnSlipPDF renders the supplier return slip for one executed
// return adjustment: one row per adjustment, grouped by kind, with the item
// total at the bottom. Returns the absolute path to the generated file.
func GenerateReturnSlipPDF(transactionRef string, itemsReturned int, adjustments []dto.AdjustmentDTO, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("return_slip_%s.pdf", transactionRef)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 10, "Supplier Return Slip", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Reference: "+transactionRef, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, time.Now().Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// ── Adjustment table ──────────────────────────────────────────────────────
	col1 := contentW * 0.28 // kind
	col2 := contentW * 0.40 // barcode
	col3 := contentW * 0.32 // detail

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1, 7, "Adjustment", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 7, "Barcode", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 7, "Detail", "B", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, a := range adjustments {
		detail := ""
		switch a.Kind {
		case dto.AdjustmentFullPacketReturn:
			detail = fmt.Sprintf("%d packet(s)", a.Quantity)
		case dto.AdjustmentLooseReturn:
			detail = fmt.Sprintf("%d item(s)", a.Quantity)
		case dto.AdjustmentPartialBreak:
			total := 0
			for _, item := range a.ItemsToRemove {
				total += item.Quantity
			}
			detail = fmt.Sprintf("%d item(s) from opened packet", total)
		}
		pdf.CellFormat(col1, 6, a.Kind, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 6, a.Barcode, "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 6, detail, "", 1, "L", false, 0, "")

		// Variant breakdown for partial breaks, indented under the row
		if a.Kind == dto.AdjustmentPartialBreak {
			pdf.SetFont("Helvetica", "I", 8)
			for _, item := range a.ItemsToRemove {
				line := fmt.Sprintf("%s / %s  x%d", item.Size, item.Color, item.Quantity)
				pdf.CellFormat(col1, 4, "", "", 0, "L", false, 0, "")
				pdf.CellFormat(col2+col3, 4, line, "", 1, "L", false, 0, "")
			}
			pdf.SetFont("Helvetica", "", 9)
		}
	}

	pdf.Ln(3)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(2)

	// ── Total ─────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(col1+col2, 8, "Total items returned:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 8, fmt.Sprintf("%d", itemsReturned), "", 1, "L", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}
