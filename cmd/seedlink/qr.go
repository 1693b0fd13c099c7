package main

import (
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"
)

// writeQR renders text as a QR code made of terminal block characters.
func writeQR(w io.Writer, text string) error {
	code, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encoding QR code: %w", err)
	}
	_, err = io.WriteString(w, code.ToSmallString(false))
	return err
}
