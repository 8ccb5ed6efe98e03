package form

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/viant/approvo/errs"
)

// Text is a free text input.
type Text struct {
	Base      `yaml:",inline"`
	MinLength int    `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength int    `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Multiline bool   `json:"multiline,omitempty" yaml:"multiline,omitempty"`
	expr      *regexp.Regexp
}

func (f *Text) Kind() Kind { return KindText }

func (f *Text) applyDefaults() {
	f.expr = nil
	if f.Pattern != "" {
		f.expr, _ = compilePattern(f.Pattern)
	}
}

func (f *Text) Check(path string, issues *errs.ValidationError) {
	if f.MinLength < 0 || f.MaxLength < 0 {
		issues.Add(path+".maxLength", "length constraints must not be negative")
	}
	if f.MaxLength > 0 && f.MinLength > f.MaxLength {
		issues.Add(path+".minLength", "must not exceed maxLength")
	}
	if f.Pattern != "" {
		if _, err := compilePattern(f.Pattern); err != nil {
			issues.Add(path+".pattern", "invalid pattern: %v", err)
		}
	}
}

func (f *Text) Validate(key string, value interface{}, issues *errs.ValidationError) {
	text, ok := value.(string)
	if !ok {
		issues.Add(key, "must be a string")
		return
	}
	length := utf8.RuneCountInString(text)
	if f.MaxLength > 0 && length > f.MaxLength {
		issues.Add(key, "must be at most %d characters", f.MaxLength)
		return
	}
	if length < f.MinLength {
		issues.Add(key, "must be at least %d characters", f.MinLength)
		return
	}
	if f.Pattern == "" {
		return
	}
	expr := f.expr
	if expr == nil || expr.String() != f.Pattern {
		var err error
		if expr, err = compilePattern(f.Pattern); err != nil {
			return
		}
	}
	if !expr.MatchString(text) {
		issues.Add(key, "does not match pattern %s", f.Pattern)
	}
}

// patterns holds compiled Text patterns shared by decoded copies of a schema.
var patterns sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	expr, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := patterns.LoadOrStore(pattern, expr)
	return actual.(*regexp.Regexp), nil
}

// Number is a numeric input.
type Number struct {
	Base    `yaml:",inline"`
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Integer bool     `json:"integer,omitempty" yaml:"integer,omitempty"`
	Unit    string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

func (f *Number) Kind() Kind { return KindNumber }

func (f *Number) Check(path string, issues *errs.ValidationError) {
	checkRange(path, f.Min, f.Max, issues)
}

func (f *Number) Validate(key string, value interface{}, issues *errs.ValidationError) {
	number, ok := asNumber(value)
	if !ok {
		issues.Add(key, "must be a number")
		return
	}
	if f.Integer && number != math.Trunc(number) {
		issues.Add(key, "must be an integer")
		return
	}
	validateRange(key, number, f.Min, f.Max, issues)
}

// Money is an amount with a currency and fixed precision.
type Money struct {
	Base      `yaml:",inline"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Currency  string   `json:"currency,omitempty" yaml:"currency,omitempty"`
	Precision *int     `json:"precision,omitempty" yaml:"precision,omitempty"`
}

// DefaultMoneyPrecision is the number of decimals allowed when unset.
const DefaultMoneyPrecision = 2

func (f *Money) Kind() Kind { return KindMoney }

func (f *Money) applyDefaults() {
	if f.Precision == nil {
		precision := DefaultMoneyPrecision
		f.Precision = &precision
	}
}

func (f *Money) precision() int {
	if f.Precision == nil {
		return DefaultMoneyPrecision
	}
	return *f.Precision
}

func (f *Money) Check(path string, issues *errs.ValidationError) {
	checkRange(path, f.Min, f.Max, issues)
	if p := f.precision(); p < 0 || p > 8 {
		issues.Add(path+".precision", "must be between 0 and 8")
	}
}

func (f *Money) Validate(key string, value interface{}, issues *errs.ValidationError) {
	var amount float64
	var decimals int
	switch actual := value.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		if err != nil {
			issues.Add(key, "must be a number")
			return
		}
		amount = parsed
		if idx := strings.IndexByte(actual, '.'); idx != -1 {
			decimals = len(strings.TrimSpace(actual[idx+1:]))
		}
	default:
		number, ok := asNumber(value)
		if !ok {
			issues.Add(key, "must be a number")
			return
		}
		amount = number
		decimals = decimalPlaces(number)
	}
	if decimals > f.precision() {
		issues.Add(key, "must have at most %d decimal places", f.precision())
		return
	}
	validateRange(key, amount, f.Min, f.Max, issues)
}

// Select is a single choice from options.
type Select struct {
	Base    `yaml:",inline"`
	Options []string `json:"options" yaml:"options"`
}

func (f *Select) Kind() Kind { return KindSelect }

func (f *Select) Check(path string, issues *errs.ValidationError) {
	checkOptions(path, f.Options, issues)
}

func (f *Select) Validate(key string, value interface{}, issues *errs.ValidationError) {
	text, ok := value.(string)
	if !ok {
		issues.Add(key, "must be a string")
		return
	}
	if !contains(f.Options, text) {
		issues.Add(key, "%q is not an allowed option", text)
	}
}

// MultiSelect is a multiple choice from options.
type MultiSelect struct {
	Base      `yaml:",inline"`
	Options   []string `json:"options" yaml:"options"`
	MinSelect int      `json:"minSelect,omitempty" yaml:"minSelect,omitempty"`
	MaxSelect int      `json:"maxSelect,omitempty" yaml:"maxSelect,omitempty"`
}

func (f *MultiSelect) Kind() Kind { return KindMultiSelect }

func (f *MultiSelect) Check(path string, issues *errs.ValidationError) {
	checkOptions(path, f.Options, issues)
	if f.MinSelect < 0 || f.MaxSelect < 0 {
		issues.Add(path+".maxSelect", "selection bounds must not be negative")
	} else if f.MaxSelect > 0 && f.MinSelect > f.MaxSelect {
		issues.Add(path+".minSelect", "must not exceed maxSelect")
	}
}

func (f *MultiSelect) Validate(key string, value interface{}, issues *errs.ValidationError) {
	values, ok := asStrings(value)
	if !ok {
		issues.Add(key, "must be a list of strings")
		return
	}
	seen := map[string]bool{}
	for _, v := range values {
		if !contains(f.Options, v) {
			issues.Add(key, "%q is not an allowed option", v)
			return
		}
		if seen[v] {
			issues.Add(key, "%q selected more than once", v)
			return
		}
		seen[v] = true
	}
	if len(values) < f.MinSelect {
		issues.Add(key, "must select at least %d options", f.MinSelect)
	} else if f.MaxSelect > 0 && len(values) > f.MaxSelect {
		issues.Add(key, "must select at most %d options", f.MaxSelect)
	}
}

// Date is a calendar date.
type Date struct {
	Base   `yaml:",inline"`
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

func (f *Date) Kind() Kind { return KindDate }

func (f *Date) applyDefaults() {
	if f.Layout == "" {
		f.Layout = DefaultDateLayout
	}
}

func (f *Date) Check(path string, issues *errs.ValidationError) {
	checkLayout(path, f.Layout, issues)
}

func (f *Date) Validate(key string, value interface{}, issues *errs.ValidationError) {
	if _, ok := parseDate(layoutOrDefault(f.Layout), value); !ok {
		issues.Add(key, "must be a date in layout %s", layoutOrDefault(f.Layout))
	}
}

// DateRange is a [start, end] pair of dates.
type DateRange struct {
	Base   `yaml:",inline"`
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

func (f *DateRange) Kind() Kind { return KindDateRange }

func (f *DateRange) applyDefaults() {
	if f.Layout == "" {
		f.Layout = DefaultDateLayout
	}
}

func (f *DateRange) Check(path string, issues *errs.ValidationError) {
	checkLayout(path, f.Layout, issues)
}

func (f *DateRange) Validate(key string, value interface{}, issues *errs.ValidationError) {
	layout := layoutOrDefault(f.Layout)
	items, ok := asStrings(value)
	if !ok || len(items) != 2 {
		issues.Add(key, "must be a [start, end] pair")
		return
	}
	start, ok := parseDate(layout, items[0])
	if !ok {
		issues.Add(key, "start must be a date in layout %s", layout)
		return
	}
	end, ok := parseDate(layout, items[1])
	if !ok {
		issues.Add(key, "end must be a date in layout %s", layout)
		return
	}
	if end.Before(start) {
		issues.Add(key, "start must not be after end")
	}
}

// UserPicker selects one or more directory users.
type UserPicker struct {
	Base     `yaml:",inline"`
	Multiple bool `json:"multiple,omitempty" yaml:"multiple,omitempty"`
}

func (f *UserPicker) Kind() Kind { return KindUser }

func (f *UserPicker) Check(string, *errs.ValidationError) {}

func (f *UserPicker) Validate(key string, value interface{}, issues *errs.ValidationError) {
	if !f.Multiple {
		if id, ok := value.(string); !ok || strings.TrimSpace(id) == "" {
			issues.Add(key, "must be a user id")
		}
		return
	}
	ids, ok := asStrings(value)
	if !ok {
		issues.Add(key, "must be a list of user ids")
		return
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			issues.Add(key, "user id must not be empty")
			return
		}
	}
}

// Attachment references externally stored files.
type Attachment struct {
	Base     `yaml:",inline"`
	MaxFiles int `json:"maxFiles,omitempty" yaml:"maxFiles,omitempty"`
}

func (f *Attachment) Kind() Kind { return KindAttachment }

func (f *Attachment) Check(path string, issues *errs.ValidationError) {
	if f.MaxFiles < 0 {
		issues.Add(path+".maxFiles", "must not be negative")
	}
}

func (f *Attachment) Validate(key string, value interface{}, issues *errs.ValidationError) {
	var items []interface{}
	switch actual := value.(type) {
	case []interface{}:
		items = actual
	case []string:
		items = make([]interface{}, len(actual))
		for i, id := range actual {
			items[i] = id
		}
	case []map[string]interface{}:
		items = make([]interface{}, len(actual))
		for i, item := range actual {
			items[i] = item
		}
	default:
		issues.Add(key, "must be a list of attachments")
		return
	}
	if f.MaxFiles > 0 && len(items) > f.MaxFiles {
		issues.Add(key, "must have at most %d files", f.MaxFiles)
		return
	}
	for _, item := range items {
		switch actual := item.(type) {
		case string:
			if actual == "" {
				issues.Add(key, "attachment id must not be empty")
				return
			}
		case map[string]interface{}:
			if id, _ := actual["id"].(string); id == "" {
				issues.Add(key, "attachment must have an id")
				return
			}
		default:
			issues.Add(key, "attachment must be an id or an {id, name} object")
			return
		}
	}
}

// Table is a repeating group of rows, each row an object keyed by column.
type Table struct {
	Base    `yaml:",inline"`
	Columns Schema `json:"columns" yaml:"columns"`
	MinRows int    `json:"minRows,omitempty" yaml:"minRows,omitempty"`
	MaxRows int    `json:"maxRows,omitempty" yaml:"maxRows,omitempty"`
}

func (f *Table) Kind() Kind { return KindTable }

func (f *Table) applyDefaults() {
	f.Columns.ApplyDefaults()
}

func (f *Table) Check(path string, issues *errs.ValidationError) {
	if len(f.Columns) == 0 {
		issues.Add(path+".columns", "must declare at least one column")
		return
	}
	for _, column := range f.Columns {
		if column == nil {
			continue
		}
		switch column.Kind() {
		case KindTable, KindDescription:
			issues.Add(path+".columns."+column.Header().Key, "%s is not allowed as a column", column.Kind())
		}
	}
	f.Columns.check(path+".columns", issues)
	if f.MinRows < 0 || f.MaxRows < 0 {
		issues.Add(path+".maxRows", "row bounds must not be negative")
	} else if f.MaxRows > 0 && f.MinRows > f.MaxRows {
		issues.Add(path+".minRows", "must not exceed maxRows")
	}
}

func (f *Table) Validate(key string, value interface{}, issues *errs.ValidationError) {
	var rows []interface{}
	switch actual := value.(type) {
	case []interface{}:
		rows = actual
	case []map[string]interface{}:
		rows = make([]interface{}, len(actual))
		for i, row := range actual {
			rows[i] = row
		}
	default:
		issues.Add(key, "must be a list of rows")
		return
	}
	if len(rows) < f.MinRows {
		issues.Add(key, "must have at least %d rows", f.MinRows)
		return
	}
	if f.MaxRows > 0 && len(rows) > f.MaxRows {
		issues.Add(key, "must have at most %d rows", f.MaxRows)
		return
	}
	for i, row := range rows {
		prefix := key + "[" + strconv.Itoa(i) + "]"
		cells, ok := row.(map[string]interface{})
		if !ok {
			issues.Add(prefix, "row must be an object")
			continue
		}
		f.Columns.validate(prefix+".", cells, issues)
	}
}

// Description is static text shown on the form. It never carries a value.
type Description struct {
	Base `yaml:",inline"`
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

func (f *Description) Kind() Kind { return KindDescription }

func (f *Description) Check(path string, issues *errs.ValidationError) {
	if f.Required {
		issues.Add(path+".required", "description can not be required")
	}
}

func (f *Description) Validate(key string, _ interface{}, issues *errs.ValidationError) {
	issues.Add(key, "does not accept a value")
}

func checkRange(path string, min, max *float64, issues *errs.ValidationError) {
	if min != nil && max != nil && *min > *max {
		issues.Add(path+".min", "must not exceed max")
	}
}

func validateRange(key string, value float64, min, max *float64, issues *errs.ValidationError) {
	if min != nil && value < *min {
		issues.Add(key, "must be at least %v", *min)
	} else if max != nil && value > *max {
		issues.Add(key, "must be at most %v", *max)
	}
}

func checkOptions(path string, options []string, issues *errs.ValidationError) {
	if len(options) == 0 {
		issues.Add(path+".options", "must not be empty")
		return
	}
	seen := map[string]bool{}
	for _, option := range options {
		if option == "" {
			issues.Add(path+".options", "option must not be empty")
			return
		}
		if seen[option] {
			issues.Add(path+".options", "duplicate option %q", option)
			return
		}
		seen[option] = true
	}
}

func checkLayout(path, layout string, issues *errs.ValidationError) {
	if layout == "" {
		return
	}
	sample := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC).Format(layout)
	if sample == layout {
		issues.Add(path+".layout", "layout %q has no date components", layout)
		return
	}
	if _, err := time.Parse(layout, sample); err != nil {
		issues.Add(path+".layout", "invalid layout %q", layout)
	}
}

func layoutOrDefault(layout string) string {
	if layout == "" {
		return DefaultDateLayout
	}
	return layout
}

func parseDate(layout string, value interface{}) (time.Time, bool) {
	text, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(layout, text)
	return ts, err == nil
}

func contains(values []string, candidate string) bool {
	for _, v := range values {
		if v == candidate {
			return true
		}
	}
	return false
}

func decimalPlaces(value float64) int {
	text := strconv.FormatFloat(value, 'f', -1, 64)
	if idx := strings.IndexByte(text, '.'); idx != -1 {
		return len(text) - idx - 1
	}
	return 0
}
