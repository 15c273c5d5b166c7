package mfa

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// Factor names issued by the ledger.
const (
	FactorEmail    = "email"
	FactorOTP      = "otp"
	FactorTelegram = "telegram"
)

// maxRawOTPLength is the longest OTP code that still needs encoding.
// Longer codes are already encoded and are sent unchanged.
const maxRawOTPLength = 6

// EncodeCode returns the value transmitted for a factor code.
// Short OTP codes are sent as the server-issued prefix followed by the
// standard base64 encoding of the code. Every other code is sent verbatim.
func EncodeCode(factor, context, code string) string {
	code = strings.TrimSpace(code)
	if factor != FactorOTP || utf8.RuneCountInString(code) > maxRawOTPLength {
		return code
	}
	return context + base64.StdEncoding.EncodeToString([]byte(code))
}
