package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"spendlog/internal/core"
	"spendlog/internal/middleware/trace"
)

var errEmptyBody = core.Invalid("body", "request body is required")

// moneyFielder names the JSON field a request's Money value is read from.
type moneyFielder interface {
	moneyField() string
}

// decodeJSON reads a single JSON object into v. Malformed or oversized bodies
// are reported as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var (
			verr    *core.ValidationError
			maxErr  *http.MaxBytesError
			typeErr *json.UnmarshalTypeError
		)
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.Is(err, core.ErrMalformedMoney):
			field := "amount"
			if mf, ok := v.(moneyFielder); ok {
				field = mf.moneyField()
			}
			return core.Invalid(field, core.ErrMalformedMoney.Reason)
		case errors.As(err, &verr):
			return verr
		case errors.As(err, &maxErr):
			return core.Invalid("body", "request body too large")
		case errors.As(err, &typeErr):
			return core.Invalid(typeErr.Field, "has the wrong type")
		default:
			return core.Invalid("body", "malformed JSON")
		}
	}
	if dec.More() {
		return core.Invalid("body", "unexpected data after JSON object")
	}
	return nil
}

// pathID parses the {id} route parameter. Non-numeric ids cannot exist, so
// they are reported as not found.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ErrNotFound
	}
	return id, nil
}

// ParseExpenseFilter reads category, payment_method, search, from and to.
// The camelCase spellings paymentMethod, startDate and endDate are accepted too.
func ParseExpenseFilter(query url.Values) (core.ExpenseFilter, error) {
	f := core.ExpenseFilter{
		Category:      sanitizeInput(query.Get("category")),
		PaymentMethod: sanitizeInput(first(query, "payment_method", "paymentMethod")),
		Search:        sanitizeInput(query.Get("search")),
	}
	for _, p := range []struct {
		dst   *core.Date
		field string
		keys  []string
	}{
		{&f.From, "from", []string{"from", "startDate"}},
		{&f.To, "to", []string{"to", "endDate"}},
	} {
		v := strings.TrimSpace(first(query, p.keys...))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return core.ExpenseFilter{}, core.Invalid(p.field, "must be a YYYY-MM-DD date")
		}
		*p.dst = d
	}
	if err := f.Validate(); err != nil {
		return core.ExpenseFilter{}, err
	}
	return f, nil
}

func first(query url.Values, keys ...string) string {
	for _, k := range keys {
		if v := query.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

func attachmentName(ownerID int64, ext string) string {
	return fmt.Sprintf(`attachment; filename="expenses-%d.%s"`, ownerID, ext)
}
