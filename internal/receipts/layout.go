package receipts

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/shopkeeper/pkg/money"
)

// Geometry fixes the page size and spacing of the image receipt.
type Geometry struct {
	Width     int
	Padding   int
	Gap       int
	MinHeight int
	QRSize    int
}

// DefaultGeometry is an 80 mm thermal roll.
func DefaultGeometry() Geometry {
	return Geometry{Width: 576, Padding: 22, Gap: 8, MinHeight: 720, QRSize: 180}
}

const (
	qtyColumnWidth     = 60
	priceColumnWidth   = 90
	totalColumnWidth   = 90
	columnGutter       = 10
	minNameColumnWidth = 140

	hrHeight        = 18
	tableHeadHeight = 36
	kvSpacing       = 6
	rowSpacing      = 6
	sumSpacing      = 10
	qrMargin        = 30
)

// NameColumnWidth is the widest the name column gets: what remains after the
// numeric columns at their minimum widths.
func (g Geometry) NameColumnWidth() int {
	return g.Width - 2*g.Padding - (qtyColumnWidth + priceColumnWidth + totalColumnWidth)
}

// columns are the item table widths for one document. Each numeric column
// fits its widest cell plus a gutter, and the name column takes the rest.
type columns struct {
	name  int
	qty   int
	price int
	total int
	// face draws the numeric cells.
	face Face
}

func (c columns) qtyX(geo Geometry) int   { return geo.Padding + c.name }
func (c columns) priceX(geo Geometry) int { return c.qtyX(geo) + c.qty }

// measureColumns sizes the table for the body face and falls back to the
// small face when wide amounts would squeeze the names too far.
func measureColumns(doc Document, faces Faces, m *MeasureChain, geo Geometry) columns {
	cols := fitColumns(doc, faces.Body, faces.Bold, m, geo)
	if cols.name >= minNameColumnWidth {
		return cols
	}
	small := fitColumns(doc, faces.Small, faces.Bold, m, geo)
	if small.name < columnGutter {
		small.name = columnGutter
	}
	return small
}

func fitColumns(doc Document, face, head Face, m *MeasureChain, geo Geometry) columns {
	cols := columns{
		qty:   max(qtyColumnWidth, m.Width("QTY", head)+columnGutter),
		price: max(priceColumnWidth, m.Width("PRICE", head)+columnGutter),
		total: max(totalColumnWidth, m.Width("TOTAL", head)+columnGutter),
		face:  face,
	}
	for _, line := range doc.Lines {
		cols.qty = max(cols.qty, m.Width(strconv.FormatInt(line.Qty, 10), face)+columnGutter)
		cols.price = max(cols.price, m.Width(money.Plain(line.Price), face)+columnGutter)
		cols.total = max(cols.total, m.Width(money.Plain(line.Total), face)+columnGutter)
	}
	cols.name = geo.Width - 2*geo.Padding - cols.qty - cols.price - cols.total
	return cols
}

// Document is the data printed on one receipt.
type Document struct {
	SaleID    uint64
	Brand     string
	Store     string
	Seller    string
	Customer  string
	Payment   string
	CreatedAt time.Time
	Lines     []DocumentLine
	Total     int64
}

type DocumentLine struct {
	Name  string
	Qty   int64
	Price int64
	Total int64
}

// QRPayload identifies the sale in the printed code.
func (d Document) QRPayload() string {
	return d.Brand + "|sale:" + strconv.FormatUint(d.SaleID, 10) +
		"|total:" + strconv.FormatInt(d.Total, 10) +
		"|time:" + d.CreatedAt.Format("2006-01-02 15:04")
}

type blockKind int

const (
	blockCenter blockKind = iota
	blockRule
	blockKV
	blockTableHead
	blockRow
	blockRowCont
	blockSum
)

type block struct {
	kind  blockKind
	text  string
	value string
	face  Face

	qty   string
	price string
	total string
	cols  *columns
}

// buildBlocks turns a document into a flat list of blocks with product
// names already wrapped to the name column.
func buildBlocks(doc Document, faces Faces, m *MeasureChain, geo Geometry) []block {
	cols := measureColumns(doc, faces, m, geo)
	blocks := []block{
		{kind: blockCenter, text: doc.Brand, face: faces.Brand},
		{kind: blockCenter, text: "SALES RECEIPT", face: faces.Title},
		{kind: blockRule},
		{kind: blockKV, text: "Chek ID", value: "#" + strconv.FormatUint(doc.SaleID, 10), face: faces.Body},
		{kind: blockKV, text: "Sana", value: doc.CreatedAt.Format("02.01.2006 15:04"), face: faces.Body},
		{kind: blockKV, text: "To'lov", value: strings.ToUpper(doc.Payment), face: faces.Bold},
		{kind: blockKV, text: "Sotuvchi", value: doc.Seller, face: faces.Small},
		{kind: blockKV, text: "Mijoz", value: doc.Customer, face: faces.Small},
		{kind: blockRule},
		{kind: blockTableHead, face: faces.Bold, cols: &cols},
	}

	for _, line := range doc.Lines {
		names := wrapText(strings.TrimSpace(line.Name), faces.Body, m, cols.name)
		blocks = append(blocks, block{
			kind:  blockRow,
			text:  names[0],
			face:  faces.Body,
			qty:   strconv.FormatInt(line.Qty, 10),
			price: money.Plain(line.Price),
			total: money.Plain(line.Total),
			cols:  &cols,
		})
		for _, extra := range names[1:] {
			blocks = append(blocks, block{kind: blockRowCont, text: extra, face: faces.Body})
		}
	}

	blocks = append(blocks,
		block{kind: blockRule},
		block{kind: blockSum, text: "JAMI", value: money.Plain(doc.Total) + money.Suffix, face: faces.Brand},
		block{kind: blockRule},
		block{kind: blockCenter, text: "Tashrifingiz uchun rahmat!", face: faces.Small},
	)
	return blocks
}

// wrapText breaks text on spaces so each line fits maxWidth. A word wider
// than the column is split between runes.
func wrapText(text string, face Face, m *MeasureChain, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := ""
	for _, word := range words {
		candidate := word
		if cur != "" {
			candidate = cur + " " + word
		}
		if m.Width(candidate, face) <= maxWidth {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
			cur = ""
		}
		if m.Width(word, face) <= maxWidth {
			cur = word
			continue
		}
		pieces := hardBreak(word, face, m, maxWidth)
		lines = append(lines, pieces[:len(pieces)-1]...)
		cur = pieces[len(pieces)-1]
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func hardBreak(word string, face Face, m *MeasureChain, maxWidth int) []string {
	var pieces []string
	for word != "" {
		end := len(word)
		for end > 0 && m.Width(word[:end], face) > maxWidth {
			_, size := utf8.DecodeLastRuneInString(word[:end])
			end -= size
		}
		if end == 0 {
			_, end = utf8.DecodeRuneInString(word)
		}
		pieces = append(pieces, word[:end])
		word = word[end:]
	}
	return pieces
}

// measureHeight is the first layout pass: it adds up block heights and the
// code block and applies the minimum page height.
func measureHeight(blocks []block, m *MeasureChain, geo Geometry) int {
	h := geo.Padding
	for _, b := range blocks {
		switch b.kind {
		case blockCenter:
			h += m.Height(b.text, b.face) + geo.Gap
		case blockRule:
			h += hrHeight
		case blockKV:
			h += m.Height(b.text+": "+b.value, b.face) + kvSpacing
		case blockTableHead:
			h += tableHeadHeight
		case blockRow:
			h += max(m.Height(b.text, b.face), m.Height(b.total, b.cols.face)) + rowSpacing
		case blockRowCont:
			h += m.Height(b.text, b.face) + rowSpacing
		case blockSum:
			h += m.Height(b.text+" "+b.value, b.face) + sumSpacing
		}
	}
	h += geo.QRSize + qrMargin + geo.Padding
	if h < geo.MinHeight {
		h = geo.MinHeight
	}
	return h
}

type opKind int

const (
	opText opKind = iota
	opLine
)

// drawOp is one primitive of the second pass. Text ops are positioned by
// their top-left corner.
type drawOp struct {
	kind  opKind
	x, y  int
	x2    int
	width float64
	text  string
	face  Face
}

// placeBlocks is the second layout pass: it assigns coordinates to every
// string and rule.
func placeBlocks(blocks []block, m *MeasureChain, geo Geometry) []drawOp {
	var ops []drawOp
	y := geo.Padding
	text := func(x, y int, s string, face Face) {
		ops = append(ops, drawOp{kind: opText, x: x, y: y, text: s, face: face})
	}
	line := func(y int, width float64) {
		ops = append(ops, drawOp{kind: opLine, x: geo.Padding, y: y, x2: geo.Width - geo.Padding, width: width})
	}

	for _, b := range blocks {
		switch b.kind {
		case blockCenter:
			size, _ := m.Measure(b.text, b.face)
			text((geo.Width-size.W)/2, y, b.text, b.face)
			y += size.H + geo.Gap
		case blockRule:
			y += 6
			line(y, 2)
			y += 12
		case blockKV:
			left := b.text + ":"
			text(geo.Padding, y, left, b.face)
			vs, _ := m.Measure(b.value, b.face)
			text(geo.Width-geo.Padding-vs.W, y, b.value, b.face)
			y += max(m.Height(left, b.face), vs.H) + kvSpacing
		case blockTableHead:
			cols := b.cols
			text(geo.Padding, y, "ITEM", b.face)
			text(cols.qtyX(geo)+(cols.qty-m.Width("QTY", b.face))/2, y, "QTY", b.face)
			text(cols.priceX(geo)+cols.price-m.Width("PRICE", b.face), y, "PRICE", b.face)
			text(geo.Width-geo.Padding-m.Width("TOTAL", b.face), y, "TOTAL", b.face)
			y += 26
			line(y, 1)
			y += 10
		case blockRow:
			cols := b.cols
			text(geo.Padding, y, b.text, b.face)
			qw := m.Width(b.qty, cols.face)
			text(cols.qtyX(geo)+(cols.qty-qw)/2, y, b.qty, cols.face)
			pw := m.Width(b.price, cols.face)
			text(cols.priceX(geo)+cols.price-pw, y, b.price, cols.face)
			tw := m.Width(b.total, cols.face)
			text(geo.Width-geo.Padding-tw, y, b.total, cols.face)
			y += max(m.Height(b.text, b.face), m.Height(b.total, cols.face)) + rowSpacing
		case blockRowCont:
			text(geo.Padding, y, b.text, b.face)
			y += m.Height(b.text, b.face) + rowSpacing
		case blockSum:
			text(geo.Padding, y, b.text, b.face)
			vs, _ := m.Measure(b.value, b.face)
			text(geo.Width-geo.Padding-vs.W, y, b.value, b.face)
			y += max(m.Height(b.text, b.face), vs.H) + sumSpacing
		}
	}
	return ops
}

// qrOrigin places the code bottom-centre.
func qrOrigin(geo Geometry, height int) (int, int) {
	return (geo.Width - geo.QRSize) / 2, height - geo.QRSize - geo.Padding - 10
}
