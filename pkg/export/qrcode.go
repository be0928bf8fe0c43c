package export

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRPixelSize is the raster size of generated codes; the PDF scales it.
const QRPixelSize = 512

// QRCodePNG encodes content as a medium-recovery QR code PNG.
func QRCodePNG(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content must not be empty")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, QRPixelSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
