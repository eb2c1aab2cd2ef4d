// Package format holds the display helpers shared by the listing, the detail
// page and the notification messages. Every helper is total: invalid input
// yields "N/A" rather than an error.
package format

import (
	"encoding/json"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"ShareDesk/internal/model"
)

// NA is returned for every value that cannot be displayed.
const NA = "N/A"

// DefaultLocale groups digits the Indian way (10,00,000).
const DefaultLocale = "en-IN"

// MarketCapUnit is appended to market capitalisation figures (crores).
const MarketCapUnit = "Cr"

// Formatter renders numbers for one locale.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Formatter for the given BCP 47 locale.
func New(locale string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, err
	}
	return &Formatter{tag: tag, printer: message.NewPrinter(tag)}, nil
}

// Locale returns the locale the formatter was built for.
func (f *Formatter) Locale() string { return f.tag.String() }

var std atomic.Pointer[Formatter]

func init() {
	f, _ := New(DefaultLocale)
	std.Store(f)
}

// SetLocale replaces the package-level formatter.
func SetLocale(locale string) error {
	f, err := New(locale)
	if err != nil {
		return err
	}
	std.Store(f)
	return nil
}

// Default returns the package-level formatter.
func Default() *Formatter { return std.Load() }

// Percentage formats v with two decimals and a percent sign.
func Percentage(v any) string { return Default().Percentage(v) }

// Number formats v with locale digit grouping.
func Number(v any) string { return Default().Number(v) }

// MarketCap formats v as "<value> Cr".
func MarketCap(v any) string { return Default().MarketCap(v) }

// Date formats v as "Jan 2, 2006".
func Date(v any) string { return Default().Date(v) }

func (f *Formatter) Percentage(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		return NA
	}
	return d.StringFixed(2) + "%"
}

func (f *Formatter) Number(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		return NA
	}
	if d.IsInteger() && d.Abs().LessThan(decimal.New(1, 18)) {
		return f.printer.Sprintf("%v", number.Decimal(d.IntPart()))
	}
	fl, _ := d.Float64()
	return f.printer.Sprintf("%v", number.Decimal(fl))
}

func (f *Formatter) MarketCap(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		return NA
	}
	return d.String() + " " + MarketCapUnit
}

func (f *Formatter) Date(v any) string {
	t, ok := toTime(v)
	if !ok {
		return NA
	}
	return t.Format("Jan 2, 2006")
}

// Fixed2 renders v with exactly two decimals, or fallback when v is not numeric.
func Fixed2(v any, fallback string) string {
	d, ok := toDecimal(v)
	if !ok {
		return fallback
	}
	return d.StringFixed(2)
}

// Raw renders v as a plain decimal, or fallback when v is not numeric.
func Raw(v any, fallback string) string {
	d, ok := toDecimal(v)
	if !ok {
		return fallback
	}
	return d.String()
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case model.Number:
		return x.Value, x.Valid
	case *model.Number:
		if x == nil {
			return decimal.Decimal{}, false
		}
		return x.Value, x.Valid
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Decimal{}, false
		}
		return *x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(x), true
	case float32:
		return toDecimal(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint:
		return decimal.NewFromInt(int64(x)), true
	case json.Number:
		n := model.ParseNumber(string(x))
		return n.Value, n.Valid
	case string:
		n := model.ParseNumber(x)
		return n.Value, n.Valid
	default:
		return decimal.Decimal{}, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return *x, true
	case model.Date:
		return x.Time, x.Valid
	case string:
		d := model.ParseDate(strings.TrimSpace(x))
		return d.Time, d.Valid
	default:
		return time.Time{}, false
	}
}
