package printing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/docprint/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Party identifies the issuer or the counterparty of a document
type Party struct {
	Code    string `json:"code,omitempty"`
	Name    string `json:"name"`
	TaxID   string `json:"tax_id,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// IsZero returns true if no party information is present
func (p Party) IsZero() bool {
	return p == Party{}
}

// LineItem is a single row of a document.
// Discount is an absolute amount, TaxRate a percentage applied after discount.
type LineItem struct {
	Code        string          `json:"code,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// Gross returns quantity times unit price
func (l LineItem) Gross() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Net returns the gross amount minus the discount
func (l LineItem) Net() decimal.Decimal {
	return l.Gross().Sub(l.Discount)
}

// Tax returns the tax amount on the net amount
func (l LineItem) Tax() decimal.Decimal {
	return l.Net().Mul(l.TaxRate).Div(hundred).Round(2)
}

// Total returns net plus tax
func (l LineItem) Total() decimal.Decimal {
	return l.Net().Add(l.Tax())
}

// Totals holds the amounts computed from the line items of a document
type Totals struct {
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
}

// Document is a business record to be rendered and printed.
// It is an immutable input of the pipeline: renderers read it and never modify it.
type Document struct {
	Type         DocType    `json:"type"`
	Number       string     `json:"number"`
	IssueDate    time.Time  `json:"issue_date"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Reference    string     `json:"reference,omitempty"` // e.g. originating order or route number
	Currency     string     `json:"currency,omitempty"`
	Issuer       Party      `json:"issuer"`
	Counterparty Party      `json:"counterparty"`
	Items        []LineItem `json:"items"`
	Note         string     `json:"note,omitempty"`
}

// Ref returns the reference that identifies this document
func (d Document) Ref() DocumentRef {
	return DocumentRef{Type: d.Type, Number: d.Number}
}

// HasLineItems returns true if the document has at least one line item
func (d Document) HasLineItems() bool {
	return len(d.Items) > 0
}

// Totals computes subtotal, discount, tax and total from the line items
func (d Document) Totals() Totals {
	t := Totals{
		ItemCount: len(d.Items),
		Subtotal:  decimal.Zero,
		Discount:  decimal.Zero,
		Tax:       decimal.Zero,
		Total:     decimal.Zero,
	}
	for _, item := range d.Items {
		t.Subtotal = t.Subtotal.Add(item.Gross())
		t.Discount = t.Discount.Add(item.Discount)
		t.Tax = t.Tax.Add(item.Tax())
	}
	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Tax)
	return t
}

// CurrencyCode returns the document currency, defaulting to USD
func (d Document) CurrencyCode() string {
	if d.Currency == "" {
		return "USD"
	}
	return strings.ToUpper(d.Currency)
}

// Validate checks the fields required to render the document
func (d Document) Validate() error {
	if !d.Type.IsValid() {
		return shared.NewDomainError("INVALID_DOC_TYPE", "Invalid document type: "+d.Type.String())
	}
	if strings.TrimSpace(d.Number) == "" {
		return shared.NewDomainError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	if d.IssueDate.IsZero() {
		return shared.NewDomainError("INVALID_ISSUE_DATE", "Issue date cannot be empty")
	}
	for i, item := range d.Items {
		if strings.TrimSpace(item.Description) == "" {
			return shared.NewDomainError("INVALID_LINE_ITEM", fmt.Sprintf("Line item %d has no description", i+1))
		}
		if item.Quantity.IsNegative() {
			return shared.NewDomainError("INVALID_LINE_ITEM", fmt.Sprintf("Line item %d has a negative quantity", i+1))
		}
		if item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(hundred) {
			return shared.NewDomainError("INVALID_LINE_ITEM", fmt.Sprintf("Line item %d has a tax rate outside 0-100", i+1))
		}
	}
	return nil
}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	c := d
	if d.DueDate != nil {
		due := *d.DueDate
		c.DueDate = &due
	}
	if d.Items != nil {
		c.Items = make([]LineItem, len(d.Items))
		copy(c.Items, d.Items)
	}
	return c
}

// DocumentRef identifies a document held by the upstream backend
type DocumentRef struct {
	Type   DocType `json:"type"`
	Number string  `json:"number"`
}

// String returns "TYPE/NUMBER"
func (r DocumentRef) String() string {
	return r.Type.String() + "/" + r.Number
}

// Validate checks that the reference can be resolved
func (r DocumentRef) Validate() error {
	if !r.Type.IsValid() {
		return shared.NewDomainError("INVALID_DOC_TYPE", "Invalid document type: "+r.Type.String())
	}
	if strings.TrimSpace(r.Number) == "" {
		return shared.NewDomainError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	return nil
}
