package receipt

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/model"
)

const (
	defaultWidth    = 42
	defaultCurrency = "USD"
)

// Encoder renders an Order into a printer-agnostic ReceiptDocument. Encode is
// pure: the only time that appears on the receipt is the order's own stored
// timestamp, converted once into the printer's locale.
type Encoder struct {
	width int
	loc   *time.Location
}

func NewEncoder(width int, loc *time.Location) *Encoder {
	if width <= 0 {
		width = defaultWidth
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Encoder{width: width, loc: loc}
}

// Encode always succeeds. Missing fields fall back to documented defaults;
// each substitution is reported as a warning, not an error.
func (e *Encoder) Encode(o model.Order) (model.ReceiptDocument, []string) {
	var doc model.ReceiptDocument
	var warnings []string

	// --- Header ---
	if o.BranchName != "" {
		doc.Add(model.StyleCenteredBold, o.BranchName)
	}
	number := o.OrderNumber
	if number == "" {
		number = fmt.Sprintf("#%d", o.ID)
		warnings = append(warnings, fmt.Sprintf("order %d has no order number, using id", o.ID))
	}
	doc.Add(model.StyleCenteredBold, "Order "+number)
	doc.Add(model.StyleCentered, o.CreatedAt.In(e.loc).Format("02/01/2006 15:04"))
	e.separator(&doc)

	// --- Line Items ---
	subtotal := decimal.Zero
	for _, item := range o.Items {
		left := fmt.Sprintf("%d x %s @ %s", item.Quantity, item.Name, money(item.UnitPrice))
		e.row(&doc, left, money(item.LineTotal()))
		for _, m := range item.Modifiers {
			doc.Add(model.StyleNormal, "  + "+m)
		}
		for _, c := range item.Customizations {
			doc.Add(model.StyleNormal, "  * "+c)
		}
		subtotal = subtotal.Add(item.LineTotal())
	}
	for _, pkg := range o.Packages {
		left := fmt.Sprintf("%d x %s @ %s", pkg.Quantity, pkg.Name, money(pkg.Price))
		e.row(&doc, left, money(pkg.LineTotal()))
		for _, it := range pkg.Items {
			doc.Add(model.StyleNormal, "  - "+it)
		}
		subtotal = subtotal.Add(pkg.LineTotal())
	}
	e.separator(&doc)

	// --- Totals ---
	// The subtotal is recomputed from the rendered lines rather than trusted
	// from a single upstream field, so a partial payload cannot skew it.
	e.row(&doc, "Subtotal", money(subtotal))
	total := subtotal
	if o.DeliveryCharges.IsPositive() {
		e.row(&doc, "Delivery", money(o.DeliveryCharges))
		total = total.Add(o.DeliveryCharges)
	}
	if o.ServiceCharges.IsPositive() {
		e.row(&doc, "Service", money(o.ServiceCharges))
		total = total.Add(o.ServiceCharges)
	}
	if o.TaxAmount.IsPositive() {
		e.row(&doc, "Tax", money(o.TaxAmount))
		total = total.Add(o.TaxAmount)
	}
	if o.TipAmount.IsPositive() {
		e.row(&doc, "Tip", money(o.TipAmount))
		total = total.Add(o.TipAmount)
	}
	if o.DiscountAmount.IsPositive() {
		e.row(&doc, "Discount", "-"+money(o.DiscountAmount))
		total = total.Sub(o.DiscountAmount)
	}

	currency := o.Currency
	if currency == "" {
		currency = defaultCurrency
		warnings = append(warnings, fmt.Sprintf("order %d has no currency, defaulting to %s", o.ID, defaultCurrency))
	}
	e.rowStyled(&doc, model.StyleBold, "TOTAL", money(total)+" "+currency)
	if !o.TotalAmount.IsZero() && !o.TotalAmount.Equal(total) {
		warnings = append(warnings, fmt.Sprintf(
			"order %d upstream total %s differs from computed %s", o.ID, money(o.TotalAmount), money(total)))
	}
	e.separator(&doc)

	// --- Fulfillment ---
	switch {
	case o.Delivery != nil:
		doc.Add(model.StyleBold, "DELIVERY")
		addIfSet(&doc, o.Delivery.Name)
		addIfSet(&doc, o.Delivery.Phone)
		addIfSet(&doc, o.Delivery.Address)
		addIfSet(&doc, o.Delivery.Instructions)
	case o.Pickup != nil:
		doc.Add(model.StyleBold, "PICKUP")
		addIfSet(&doc, o.Pickup.Name)
		addIfSet(&doc, o.Pickup.Phone)
		addIfSet(&doc, o.Pickup.Instructions)
	}
	if o.SpecialInstructions != "" {
		doc.Add(model.StyleNormal, "Note: "+o.SpecialInstructions)
	}
	if o.AllergenNote != "" {
		doc.Add(model.StyleBold, "Allergens: "+o.AllergenNote)
	}

	// --- Footer ---
	doc.Add(model.StyleCentered, "Thank you")
	doc.Add(model.StyleCut, "")

	return doc, warnings
}

func (e *Encoder) separator(doc *model.ReceiptDocument) {
	doc.Add(model.StyleNormal, strings.Repeat("-", e.width))
}

func (e *Encoder) row(doc *model.ReceiptDocument, left, right string) {
	e.rowStyled(doc, model.StyleNormal, left, right)
}

// rowStyled lays out a label/amount pair on one line, amount right-aligned.
// Overlong labels push the amount to its own right-aligned line. Widths are
// counted in runes, not bytes, so multibyte names keep the amount column
// straight.
func (e *Encoder) rowStyled(doc *model.ReceiptDocument, style model.LineStyle, left, right string) {
	pad := e.width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if pad < 1 {
		doc.Add(style, left)
		doc.Add(style, strings.Repeat(" ", maxInt(0, e.width-utf8.RuneCountInString(right)))+right)
		return
	}
	doc.Add(style, left+strings.Repeat(" ", pad)+right)
}

func addIfSet(doc *model.ReceiptDocument, text string) {
	if text != "" {
		doc.Add(model.StyleNormal, text)
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
