// Package statuscode translates MONEI status codes (E000, E201, ...) into
// descriptions and categories and builds failure comments for orders.
package statuscode

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cimillas/monei-reconciler/internal/money"
	"gopkg.in/yaml.v3"
)

// SuccessCode is the only code that denotes an approved transaction.
const SuccessCode = "E000"

//go:embed codes.yaml
var codesYAML []byte

// Category groups codes by their numeric range.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryConfiguration Category = "configuration"
	CategoryTransaction   Category = "transaction"
	CategorySecurity      Category = "security"
	CategoryCard          Category = "card"
	CategoryDigitalWallet Category = "digital_wallet"
	CategoryAlternative   Category = "alternative_method"
	CategoryUnknown       Category = "unknown"
)

// Table maps codes to descriptions.
type Table struct {
	codes map[string]string
}

// Parse reads a YAML mapping of code to description.
func Parse(data []byte) (*Table, error) {
	codes := map[string]string{}
	if err := yaml.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("parse status codes: %w", err)
	}
	norm := make(map[string]string, len(codes))
	for k, v := range codes {
		norm[normalize(k)] = v
	}
	return &Table{codes: norm}, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded MONEI code table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(codesYAML)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// Describe returns the description for code.
func (t *Table) Describe(code string) (string, bool) {
	d, ok := t.codes[normalize(code)]
	return d, ok
}

// Message returns the description or a generic fallback.
func (t *Table) Message(code string) string {
	if d, ok := t.Describe(code); ok {
		return d
	}
	if code == "" {
		return "Unknown error"
	}
	return fmt.Sprintf("Unknown status code %s", normalize(code))
}

// Codes returns every known code in order.
func (t *Table) Codes() []string {
	out := make([]string, 0, len(t.codes))
	for k := range t.codes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len is the number of known codes.
func (t *Table) Len() int { return len(t.codes) }

// Describe looks code up in the default table.
func Describe(code string) (string, bool) { return Default().Describe(code) }

// Message looks code up in the default table with a fallback.
func Message(code string) string { return Default().Message(code) }

// CategoryOf groups a code by its hundreds digit.
func CategoryOf(code string) Category {
	n, ok := number(code)
	if !ok {
		return CategoryUnknown
	}
	switch n / 100 {
	case 0:
		return CategoryGeneral
	case 1:
		return CategoryConfiguration
	case 2:
		return CategoryTransaction
	case 3:
		return CategorySecurity
	case 4:
		return CategoryCard
	case 5:
		return CategoryDigitalWallet
	case 6:
		return CategoryAlternative
	}
	return CategoryUnknown
}

// IsSuccessCode reports whether code is E000.
func IsSuccessCode(code string) bool {
	return normalize(code) == SuccessCode
}

// IsErrorCode reports whether code is a well-formed non-success code.
func IsErrorCode(code string) bool {
	_, ok := number(code)
	return ok && !IsSuccessCode(code)
}

type statusCodeGetter interface {
	GetStatusCode() string
}

// ExtractFromData finds the status code in a payload. Redirects, webhooks
// and SDK calls use different shapes, so keys are tried in this order:
// statusCode, status_code, response.statusCode, then the original payment
// (an object with GetStatusCode or a map with statusCode).
func ExtractFromData(data map[string]any) string {
	if data == nil {
		return ""
	}
	if s := str(data["statusCode"]); s != "" {
		return s
	}
	if s := str(data["status_code"]); s != "" {
		return s
	}
	if resp, ok := data["response"].(map[string]any); ok {
		if s := str(resp["statusCode"]); s != "" {
			return s
		}
	}
	for _, key := range []string{"originalPayment", "original_payment"} {
		switch op := data[key].(type) {
		case statusCodeGetter:
			if s := strings.TrimSpace(op.GetStatusCode()); s != "" {
				return s
			}
		case map[string]any:
			if s := str(op["statusCode"]); s != "" {
				return s
			}
		}
	}
	return ""
}

// FailureComment builds the history comment for a failed, canceled or
// expired payment. The provider message wins over the table description;
// with neither a code nor a message the canned reason for status is used.
func FailureComment(status, code, message string, amount int64, currency string) string {
	var b strings.Builder
	b.WriteString(cannedReason(status))
	code = strings.TrimSpace(code)
	message = strings.TrimSpace(message)
	if message == "" && code != "" {
		if d, ok := Describe(code); ok {
			message = d
		}
	}
	switch {
	case code != "" && message != "":
		fmt.Fprintf(&b, ". Status code %s: %s", normalize(code), message)
	case code != "":
		fmt.Fprintf(&b, ". Status code %s", normalize(code))
	case message != "":
		fmt.Fprintf(&b, ". %s", message)
	}
	if amount > 0 {
		fmt.Fprintf(&b, ". Amount: %s", money.Format(amount, currency))
	}
	return b.String()
}

func cannedReason(status string) string {
	switch strings.ToUpper(status) {
	case "CANCELED":
		return "Payment canceled"
	case "EXPIRED":
		return "Payment expired"
	default:
		return "Payment failed"
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func number(code string) (int, bool) {
	c := normalize(code)
	if len(c) != 4 || c[0] != 'E' {
		return 0, false
	}
	n, err := strconv.Atoi(c[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	}
	return ""
}
