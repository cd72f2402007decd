package model

// --- Receipt Document ---

// LineStyle selects how a single receipt line is printed. The encoder emits
// styled lines only; byte-level escape codes live in the ESC/POS serializer.
type LineStyle int

const (
	StyleNormal LineStyle = iota
	StyleBold
	StyleCentered
	StyleCenteredBold
	// StyleCut feeds and cuts the paper. The Text of a cut line is ignored.
	StyleCut
)

type ReceiptLine struct {
	Text  string
	Style LineStyle
}

// ReceiptDocument is the printer-agnostic representation of one receipt.
// Encoding the same Order always yields the same document.
type ReceiptDocument struct {
	Lines []ReceiptLine
}

func (d *ReceiptDocument) Add(style LineStyle, text string) {
	d.Lines = append(d.Lines, ReceiptLine{Text: text, Style: style})
}
