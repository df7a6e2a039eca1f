// Package totp implementa TOTP (RFC 6238) con HMAC-SHA1, 6 dígitos,
// período de 30s. Sin dependencias externas.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	periodSeconds = 30
	digits        = 6
)

// GenerateSecret retorna 20 bytes aleatorios y su base32 sin padding (RFC 3548).
func GenerateSecret() (raw []byte, b32 string, err error) {
	raw = make([]byte, 20)
	if _, err = rand.Read(raw); err != nil {
		return nil, "", err
	}
	return raw, base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// DecodeSecret decodifica un secreto base32 sin padding.
func DecodeSecret(b32 string) ([]byte, error) {
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(strings.TrimSpace(b32)))
}

// OTPAuthURL construye otpauth:// para el QR de enrolamiento.
func OTPAuthURL(issuer, accountName, secretB32 string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, accountName))
	q := url.Values{}
	q.Set("secret", secretB32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", digits))
	q.Set("period", fmt.Sprintf("%d", periodSeconds))
	return fmt.Sprintf("otpauth://totp/%s?%s", label, q.Encode())
}

// Verify valida un código en ventana +/- windowSteps (default 1).
func Verify(secretRaw []byte, code string, t time.Time, windowSteps int) bool {
	code = strings.TrimSpace(code)
	if len(code) != digits {
		return false
	}
	if windowSteps <= 0 {
		windowSteps = 1
	}
	counter := t.Unix() / periodSeconds
	for c := counter - int64(windowSteps); c <= counter+int64(windowSteps); c++ {
		if hotp(secretRaw, c) == code {
			return true
		}
	}
	return false
}

// hotp computa HOTP(K, C) con HMAC-SHA1 (RFC 4226).
func hotp(secretRaw []byte, counter int64) string {
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	m := hmac.New(sha1.New, secretRaw)
	_, _ = m.Write(msg[:])
	sum := m.Sum(nil)
	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 | int(sum[offset+1])<<16 | int(sum[offset+2])<<8 | int(sum[offset+3])
	return fmt.Sprintf("%06d", bin%1000000)
}
