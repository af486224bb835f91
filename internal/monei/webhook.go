package monei

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/statuscode"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on MONEI callbacks.
const SignatureHeader = "MONEI-Signature"

// DefaultSignatureTolerance bounds how old a signed callback may be.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifySignature checks an HMAC-SHA256 over "<t>.<body>" keyed with secret.
// A zero tolerance disables the timestamp check.
func VerifySignature(body []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	ts, sig, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}
	if tolerance > 0 {
		sent := time.Unix(ts, 0)
		if now.Sub(sent) > tolerance || sent.Sub(now) > tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
		}
	}
	expected := Sign(body, secret, ts)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("%w: mismatch", domain.ErrInvalidSignature)
	}
	return nil
}

// Sign returns the hex signature for body at unix time ts.
func Sign(body []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureValue formats the header value for body at ts.
func SignatureValue(body []byte, secret string, ts int64) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, Sign(body, secret, ts))
}

func parseSignatureHeader(header string) (int64, string, error) {
	if strings.TrimSpace(header) == "" {
		return 0, "", fmt.Errorf("%w: missing %s header", domain.ErrInvalidSignature, SignatureHeader)
	}
	var (
		ts  int64
		sig string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("%w: bad timestamp", domain.ErrInvalidSignature)
			}
			ts = n
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", fmt.Errorf("%w: malformed header", domain.ErrInvalidSignature)
	}
	return ts, sig, nil
}

// ParseCallback decodes a webhook body into a payment. The returned keys
// are safe to log when decoding fails validation.
func ParseCallback(body []byte) (domain.Payment, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return domain.Payment{}, nil, fmt.Errorf("%w: body is not a JSON object", domain.ErrMissingField)
	}
	keys := domain.PayloadKeys(data)
	p, err := domain.NewPaymentFromMap(data, statuscode.ExtractFromData)
	if err != nil {
		return domain.Payment{}, keys, err
	}
	return p, keys, nil
}
