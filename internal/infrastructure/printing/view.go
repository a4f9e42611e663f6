package printing

import (
	"html/template"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/shopspring/decimal"
)

// DocumentView is the data bound to document templates
type DocumentView struct {
	Title             string
	CounterpartyLabel string
	Doc               printing.Document
	Lines             []LineView
	Totals            printing.Totals
	Currency          string
	Theme             Theme
	CSS               template.CSS
	Receipt           bool
	Landscape         bool
}

// LineView is one computed line item row
type LineView struct {
	No    int
	Item  printing.LineItem
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// NewDocumentView computes the values shown on the printed document
func NewDocumentView(doc printing.Document, theme Theme, opts printing.RenderOptions) DocumentView {
	lines := make([]LineView, len(doc.Items))
	for i, item := range doc.Items {
		lines[i] = LineView{
			No:    i + 1,
			Item:  item,
			Net:   item.Net(),
			Tax:   item.Tax(),
			Total: item.Total(),
		}
	}
	theme = theme.WithDefaults()
	return DocumentView{
		Title:             doc.Type.DisplayName(),
		CounterpartyLabel: counterpartyLabel(doc.Type),
		Doc:               doc,
		Lines:             lines,
		Totals:            doc.Totals(),
		Currency:          doc.CurrencyCode(),
		Theme:             theme,
		CSS:               template.CSS(theme.CSS()),
		Receipt:           opts.PaperSize.IsReceipt(),
		Landscape:         opts.Orientation == printing.OrientationLandscape,
	}
}

func counterpartyLabel(docType printing.DocType) string {
	switch docType {
	case printing.DocTypePurchaseOrder:
		return "Supplier"
	case printing.DocTypeDeliveryReport:
		return "Deliver to"
	default:
		return "Customer"
	}
}
