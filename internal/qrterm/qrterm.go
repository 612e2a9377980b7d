// Package qrterm renders a login QR challenge to an operator-facing terminal.
package qrterm

import (
	"fmt"
	"io"

	qrcode "github.com/skip2/go-qrcode"
)

// Print writes payload as a scannable half-block QR code to w, with the raw
// URL underneath so the operator can open it by hand if the terminal mangles
// the blocks. Render failures fall back to the plain URL.
func Print(w io.Writer, payload string) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "qr render failed (%v), open manually: %s\n", err, payload)
		return
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, qr.ToSmallString(false))
	fmt.Fprintf(w, "scan to log in: %s\n", payload)
}
