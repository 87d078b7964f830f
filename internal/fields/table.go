package fields

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/shehryarbajwa/casefiler/internal/dom"
	"github.com/shehryarbajwa/casefiler/pkg/models"
)

// TargetURL is the portal's entry point. It is not configurable per call.
const TargetURL = "https://taqadi.sjc.gov.qa/itc/"

// Kind is how a field is filled
type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindFile     Kind = "file"
)

// Candidates is an ordered list of guesses for one UI element. The first
// one that works wins.
type Candidates []dom.Locator

// FieldSpec maps one logical field to its candidates and its value.
// Filename names the upload of a KindFile field.
type FieldSpec struct {
	Name       string
	Kind       Kind
	Candidates Candidates
	Value      func(req models.SubmissionRequest) string
	Filename   string
}

// UploadName is the filename a KindFile field uploads src under: the
// configured Filename, else the last path segment of src when it has an
// extension, else the field name.
func (f FieldSpec) UploadName(src string) string {
	if f.Filename != "" {
		return f.Filename
	}
	p := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		p = u.Path
	}
	if base := path.Base(p); path.Ext(base) != "" {
		return base
	}
	return f.Name
}

// DocumentSpec describes where a named document goes
type DocumentSpec struct {
	Key        string
	Label      string
	Filename   string
	Trigger    Candidates // clicked before the file input exists, best effort
	Candidates Candidates
}

// Assignment is a field with a non-empty value from a request
type Assignment struct {
	Field FieldSpec
	Value string
}

// AuthCheck says what a logged-in page looks like
type AuthCheck struct {
	URLContains []string
	Markers     []dom.Locator
}

// Table is everything the workflow needs to know about the target site's
// markup. A UI redesign is handled by editing the table, not the workflow.
type Table struct {
	TargetURL   string
	Auth        AuthCheck
	StartRecord Candidates
	Category    Candidates
	SubCategory Candidates
	Next        Candidates
	Fields      []FieldSpec
	Documents   []DocumentSpec
}

// Resolve returns the fields that have a value in req, in table order.
// Empty values are left out so a blank never overwrites page content.
func (t *Table) Resolve(req models.SubmissionRequest) []Assignment {
	var out []Assignment
	for _, f := range t.Fields {
		if f.Value == nil {
			continue
		}
		v := strings.TrimSpace(f.Value(req))
		if v == "" {
			continue
		}
		out = append(out, Assignment{Field: f, Value: v})
	}
	return out
}

// Field looks up a field by name
func (t *Table) Field(name string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FormatAmount renders a money amount the way the portal's numeric inputs
// accept it. Zero and negative amounts are treated as absent.
func FormatAmount(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AmountValue prefers the caller's text and falls back to the total
func AmountValue(req models.SubmissionRequest) string {
	if s := strings.TrimSpace(req.Texts.Amount); s != "" {
		return s
	}
	return FormatAmount(req.Amounts.Total)
}

// AmountInWordsValue prefers the caller's text and falls back to the total's
func AmountInWordsValue(req models.SubmissionRequest) string {
	if s := strings.TrimSpace(req.Texts.AmountInWords); s != "" {
		return s
	}
	return req.Amounts.TotalInWords
}
