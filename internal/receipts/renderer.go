// Package receipts renders committed sales as chat text or PNG images.
package receipts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/pkg/config"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
	"github.com/angelmondragon/shopkeeper/pkg/metrics"
)

// Format selects the artifact kind.
type Format string

const (
	FormatPlain Format = "text"
	FormatPNG   Format = "png"
)

// ParseFormat accepts "text", "txt" and "png".
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text", "txt":
		return FormatPlain, nil
	case "png", "image":
		return FormatPNG, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported receipt format").
			WithDetails(map[string]any{"format": raw})
	}
}

const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypePNG  = "image/png"
)

// Artifact is a rendered receipt. Degraded is set when the result is less
// than what was asked for: a missing code, a bitmap font, or text in place
// of an image.
type Artifact struct {
	SaleID      uint64
	Format      Format
	ContentType string
	Body        []byte
	Degraded    bool
	Warnings    []string
}

type saleReader interface {
	SaleDetail(ctx context.Context, saleID uint64) (*ledger.SaleDetail, error)
}

// Options configures a Renderer. Zero values use the defaults.
type Options struct {
	Store    config.StoreConfig
	Receipt  config.ReceiptConfig
	Location *time.Location
	Measure  *MeasureChain
	QR       QREncoder
	Logger   *logger.Logger
	Metrics  *metrics.ReceiptMetrics
}

type Renderer struct {
	sales   saleReader
	store   config.StoreConfig
	geo     Geometry
	loc     *time.Location
	fonts   *FontSet
	measure *MeasureChain
	qr      QREncoder
	logg    *logger.Logger
	metrics *metrics.ReceiptMetrics
	compose func(Document, Faces, *MeasureChain, Geometry, QREncoder) (imageResult, error)
}

func NewRenderer(sales saleReader, opts Options) (*Renderer, error) {
	if sales == nil {
		return nil, fmt.Errorf("sale reader required")
	}
	geo := DefaultGeometry()
	if opts.Receipt.Width > 0 {
		geo.Width = opts.Receipt.Width
	}
	if opts.Receipt.MinHeight > 0 {
		geo.MinHeight = opts.Receipt.MinHeight
	}
	if opts.Receipt.QRSize > 0 {
		geo.QRSize = opts.Receipt.QRSize
	}
	if geo.NameColumnWidth() <= 0 {
		return nil, fmt.Errorf("receipt width %d too narrow", geo.Width)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Measure == nil {
		opts.Measure = DefaultMeasureChain()
	}
	if opts.QR == nil {
		opts.QR = EncodeQR
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	fonts, warnings := LoadFonts(opts.Receipt.FontPaths, opts.Receipt.BoldPaths)
	for _, w := range warnings {
		opts.Logger.Warn(opts.Logger.WithField(context.Background(), "reason", w), "receipt font fallback")
	}

	return &Renderer{
		sales:   sales,
		store:   opts.Store,
		geo:     geo,
		loc:     opts.Location,
		fonts:   fonts,
		measure: opts.Measure,
		qr:      opts.QR,
		logg:    opts.Logger,
		metrics: opts.Metrics,
		compose: composeImage,
	}, nil
}

// Document loads a sale and converts it into printable form.
func (r *Renderer) Document(ctx context.Context, saleID uint64) (Document, error) {
	detail, err := r.sales.SaleDetail(ctx, saleID)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		SaleID:    detail.Sale.ID,
		Brand:     r.store.Brand,
		Store:     r.store.Name,
		Seller:    r.sellerDisplay(detail.Sale.SellerPhone),
		Customer:  "-",
		Payment:   detail.Sale.PaymentType.Label(),
		CreatedAt: detail.Sale.CreatedAt.In(r.loc),
		Total:     detail.Sale.TotalAmount,
	}
	if doc.Brand == "" {
		doc.Brand = "SRM"
	}
	if detail.Customer != nil {
		doc.Customer = strings.TrimSpace(detail.Customer.Name + " " + detail.Customer.Phone)
	}
	for _, item := range detail.Items {
		doc.Lines = append(doc.Lines, DocumentLine{
			Name:  item.Name,
			Qty:   item.Qty,
			Price: item.Price,
			Total: item.Total,
		})
	}
	return doc, nil
}

func (r *Renderer) sellerDisplay(salePhone string) string {
	phone := salePhone
	if phone == "" {
		phone = r.store.SellerPhone
	}
	name := strings.TrimSpace(r.store.SellerName)
	switch {
	case name != "" && phone != "":
		return name + " (" + phone + ")"
	case name != "":
		return name
	case phone != "":
		return phone
	default:
		return "-"
	}
}

// RenderText returns the chat receipt for a sale.
func (r *Renderer) RenderText(ctx context.Context, saleID uint64) (string, error) {
	doc, err := r.Document(ctx, saleID)
	if err != nil {
		return "", err
	}
	r.metrics.IncRender(string(FormatPlain))
	return FormatText(doc), nil
}

// RenderImage composes the PNG receipt. A failed code is reported through
// the artifact, not as an error.
func (r *Renderer) RenderImage(ctx context.Context, saleID uint64) (*Artifact, error) {
	doc, err := r.Document(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return r.renderImage(ctx, doc)
}

func (r *Renderer) renderImage(ctx context.Context, doc Document) (*Artifact, error) {
	faces, faceWarnings := r.fonts.Faces()
	defer faces.Close()

	res, err := r.compose(doc, faces, r.measure, r.geo, r.qr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compose receipt image")
	}

	artifact := &Artifact{
		SaleID:      doc.SaleID,
		Format:      FormatPNG,
		ContentType: ContentTypePNG,
		Body:        res.png,
		Warnings:    append(faceWarnings, res.warnings...),
	}
	if res.qrFailed {
		artifact.Degraded = true
		r.metrics.IncDegraded("qr")
	}
	if r.fonts.Source == "bitmap" || len(faceWarnings) > 0 {
		artifact.Degraded = true
		artifact.Warnings = append(artifact.Warnings, "bitmap font used")
		r.metrics.IncDegraded("font")
	}
	if artifact.Degraded {
		r.logg.Warn(r.logg.WithFields(r.logg.WithSaleID(ctx, doc.SaleID), map[string]any{
			"warnings": artifact.Warnings,
		}), "receipt image degraded")
	}
	r.metrics.IncRender(string(FormatPNG))
	return artifact, nil
}

// Render produces the requested format. When the image cannot be composed at
// all the text receipt is returned instead, marked degraded.
func (r *Renderer) Render(ctx context.Context, saleID uint64, format Format) (*Artifact, error) {
	doc, err := r.Document(ctx, saleID)
	if err != nil {
		return nil, err
	}

	if format == FormatPNG {
		artifact, err := r.renderImage(ctx, doc)
		if err == nil {
			return artifact, nil
		}
		r.logg.Error(r.logg.WithSaleID(ctx, doc.SaleID), "receipt image failed, sending text", err)
		r.metrics.IncDegraded("text_fallback")
		text := r.textArtifact(doc)
		text.Degraded = true
		text.Warnings = append(text.Warnings, err.Error())
		return text, nil
	}
	return r.textArtifact(doc), nil
}

func (r *Renderer) textArtifact(doc Document) *Artifact {
	r.metrics.IncRender(string(FormatPlain))
	return &Artifact{
		SaleID:      doc.SaleID,
		Format:      FormatPlain,
		ContentType: ContentTypeText,
		Body:        []byte(FormatText(doc)),
	}
}
