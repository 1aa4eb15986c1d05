package receipts

import (
	"bytes"
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/fogleman/gg"
)

// imageResult is a composed PNG plus any non-fatal problems met on the way.
type imageResult struct {
	png      []byte
	warnings []string
	qrFailed bool
}

// QREncoder draws payload as a square code of the given side.
type QREncoder func(payload string, side int) (image.Image, error)

// composeImage runs both layout passes and rasterizes the result.
func composeImage(doc Document, faces Faces, m *MeasureChain, geo Geometry, encode QREncoder) (res imageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compose receipt image: %v", r)
		}
	}()

	blocks := buildBlocks(doc, faces, m, geo)
	height := measureHeight(blocks, m, geo)
	ops := placeBlocks(blocks, m, geo)

	dc := gg.NewContext(geo.Width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)

	for _, op := range ops {
		switch op.kind {
		case opLine:
			dc.SetLineWidth(op.width)
			dc.DrawLine(float64(op.x), float64(op.y), float64(op.x2), float64(op.y))
			dc.Stroke()
		case opText:
			dc.SetFontFace(op.face.Face)
			dc.DrawStringAnchored(op.text, float64(op.x), float64(op.y), 0, 1)
		}
	}

	code, qrErr := safeEncode(encode, doc.QRPayload(), geo.QRSize)
	if qrErr != nil {
		res.qrFailed = true
		res.warnings = append(res.warnings, qrErr.Error())
	} else {
		x, y := qrOrigin(geo, height)
		dc.DrawImage(code, x, y)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return res, fmt.Errorf("encode receipt png: %w", err)
	}
	res.png = buf.Bytes()
	return res, nil
}

// EncodeQR renders payload with medium error correction.
func EncodeQR(payload string, side int) (image.Image, error) {
	if side <= 0 {
		return nil, fmt.Errorf("qr code: invalid size %d", side)
	}
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	scaled, err := barcode.Scale(code, side, side)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	return scaled, nil
}

func safeEncode(encode QREncoder, payload string, side int) (img image.Image, err error) {
	if encode == nil {
		return nil, fmt.Errorf("qr code: no encoder")
	}
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("qr code: %v", r)
		}
	}()
	return encode(payload, side)
}
