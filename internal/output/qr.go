package output

import (
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"
)

// QRConfig configures QR rendering.
type QRConfig struct {
	Level qrcode.RecoveryLevel
	// Inverse swaps dark and light modules for light-on-dark terminals.
	Inverse bool
	// Force renders even when w is not a terminal.
	Force bool
}

// DefaultQRConfig returns defaults for otpauth enrollment URIs.
func DefaultQRConfig() QRConfig {
	return QRConfig{Level: qrcode.Medium}
}

// RenderQR writes data as a half-block QR code. Nothing is written when w is
// not a terminal unless cfg.Force is set.
func RenderQR(w io.Writer, data string, cfg QRConfig) error {
	if !cfg.Force && !IsTerminal(w) {
		return nil
	}

	code, err := qrcode.New(data, cfg.Level)
	if err != nil {
		return fmt.Errorf("encoding QR code: %w", err)
	}
	_, err = io.WriteString(w, code.ToSmallString(cfg.Inverse))
	return err
}

// WriteQRFile writes data as a PNG QR code of size pixels.
func WriteQRFile(path, data string, size int) error {
	return qrcode.WriteFile(data, qrcode.Medium, size, path)
}
