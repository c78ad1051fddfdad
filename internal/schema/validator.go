package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/alexanderramin/aicanvas/internal/page"
)

// Keywords used for checks the schema language cannot express.
const (
	KeywordReference = "reference"
	KeywordUniqueID  = "uniqueId"
	KeywordEncoding  = "encoding"

	WarnInlineData    = "inlineData"
	WarnUnusedDataRef = "unusedDataRef"
	WarnUnplaced      = "unplaced"
	WarnOverflow      = "overflow"
	WarnUnresolvedRef = "unresolvedDataRef"
)

// StructuredError is one diagnostic. Path is a JSON Pointer into the
// candidate; the empty string is the document root.
type StructuredError struct {
	Path    string `json:"path"`
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

func (e StructuredError) String() string {
	path := e.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s: %s (%s)", path, e.Message, e.Keyword)
}

// Result is the outcome of validating one candidate. Valid is true exactly
// when Errors is nil. Warnings never affect validity.
type Result struct {
	Valid    bool              `json:"valid"`
	Errors   []StructuredError `json:"errors,omitempty"`
	Warnings []StructuredError `json:"warnings,omitempty"`
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	printer     = message.NewPrinter(language.English)
)

func compiledSchema() *jsonschema.Schema {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(pageSchema))
		if err != nil {
			panic(fmt.Sprintf("schema: decoding page schema: %v", err))
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(ID, doc); err != nil {
			panic(fmt.Sprintf("schema: adding page schema: %v", err))
		}
		compiled, err = c.Compile(ID)
		if err != nil {
			panic(fmt.Sprintf("schema: compiling page schema: %v", err))
		}
	})
	return compiled
}

// Validator checks candidates against the page schema. The compiled schema
// is shared by all validators; a Validator is safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator returns a validator bound to the compiled page schema.
func NewValidator() *Validator {
	return &Validator{schema: compiledSchema()}
}

// Validate checks an arbitrary decoded value. The candidate is re-encoded
// before validation and is never modified. json.RawMessage is treated as an
// encoded document.
func (v *Validator) Validate(candidate any) Result {
	if raw, ok := candidate.(json.RawMessage); ok {
		return v.ValidateJSON(raw)
	}
	data, err := json.Marshal(candidate)
	if err != nil {
		return failed(StructuredError{Keyword: KeywordEncoding, Message: fmt.Sprintf("candidate is not JSON-encodable: %v", err)})
	}
	return v.ValidateJSON(data)
}

// ValidateJSON checks an encoded document.
func (v *Validator) ValidateJSON(data []byte) Result {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return failed(StructuredError{Keyword: KeywordEncoding, Message: fmt.Sprintf("invalid JSON: %v", err)})
	}

	var errs []StructuredError
	if err := v.schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			errs = append(errs, StructuredError{Keyword: KeywordEncoding, Message: err.Error()})
		} else {
			errs = appendLeaves(errs, verr)
		}
	}

	root, _ := doc.(map[string]any)
	errs = append(errs, checkReferences(root)...)
	warnings := lint(root)

	sortErrors(errs)
	sortErrors(warnings)
	if len(errs) == 0 {
		errs = nil
	}
	if len(warnings) == 0 {
		warnings = nil
	}
	return Result{Valid: errs == nil, Errors: errs, Warnings: warnings}
}

// Validate checks a candidate with a fresh validator.
func Validate(candidate any) Result {
	return NewValidator().Validate(candidate)
}

func failed(e StructuredError) Result {
	return Result{Valid: false, Errors: []StructuredError{e}}
}

func appendLeaves(out []StructuredError, verr *jsonschema.ValidationError) []StructuredError {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			out = appendLeaves(out, cause)
		}
		return out
	}
	keyword := "false"
	if kp := verr.ErrorKind.KeywordPath(); len(kp) > 0 {
		keyword = kp[len(kp)-1]
	}
	// Point at each missing property rather than at the object holding it.
	if req, ok := verr.ErrorKind.(*kind.Required); ok {
		for _, name := range req.Missing {
			one := &kind.Required{Missing: []string{name}}
			out = append(out, StructuredError{
				Path:    Pointer(append(slices.Clone(verr.InstanceLocation), name)...),
				Keyword: keyword,
				Message: one.LocalizedString(printer),
			})
		}
		return out
	}
	msg := verr.ErrorKind.LocalizedString(printer)
	if keyword == "false" {
		msg = "property is not allowed here"
	}
	return append(out, StructuredError{
		Path:    Pointer(verr.InstanceLocation...),
		Keyword: keyword,
		Message: msg,
	})
}

// Pointer builds a JSON Pointer from path tokens.
func Pointer(tokens ...string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		t = strings.ReplaceAll(t, "~", "~0")
		b.WriteString(strings.ReplaceAll(t, "/", "~1"))
	}
	return b.String()
}

func sortErrors(errs []StructuredError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Path != errs[j].Path {
			return errs[i].Path < errs[j].Path
		}
		if errs[i].Keyword != errs[j].Keyword {
			return errs[i].Keyword < errs[j].Keyword
		}
		return errs[i].Message < errs[j].Message
	})
}

// checkReferences reports layout items naming unknown components, duplicate
// item ids and dataRefs naming unknown datasets.
func checkReferences(root map[string]any) []StructuredError {
	if root == nil {
		return nil
	}
	var errs []StructuredError
	components, _ := root["components"].(map[string]any)

	seen := make(map[string]int)
	for n, item := range layoutItems(root) {
		id, ok := item["i"].(string)
		if !ok || id == "" {
			continue
		}
		idx := strconv.Itoa(n)
		if first, dup := seen[id]; dup {
			errs = append(errs, StructuredError{
				Path:    Pointer("layout", "items", idx, "i"),
				Keyword: KeywordUniqueID,
				Message: fmt.Sprintf("layout item %q duplicates items[%d]", id, first),
			})
		} else {
			seen[id] = n
		}
		if components != nil {
			if _, ok := components[id]; !ok {
				errs = append(errs, StructuredError{
					Path:    Pointer("layout", "items", idx, "i"),
					Keyword: KeywordReference,
					Message: fmt.Sprintf("component %q is not defined", id),
				})
			}
		}
	}

	return errs
}

// lint reports convention breaches that do not make a page invalid.
func lint(root map[string]any) []StructuredError {
	if root == nil {
		return nil
	}
	var warns []StructuredError
	components, _ := root["components"].(map[string]any)
	data, _ := root["data"].(map[string]any)
	placed := make(map[string]bool)

	cols := page.DefaultCols
	if layout, ok := root["layout"].(map[string]any); ok {
		if n, ok := toInt(layout["cols"]); ok && n > 0 {
			cols = n
		}
	}
	for n, item := range layoutItems(root) {
		if id, ok := item["i"].(string); ok {
			placed[id] = true
		}
		x, okX := toInt(item["x"])
		w, okW := toInt(item["w"])
		if okX && okW && x+w > cols {
			warns = append(warns, StructuredError{
				Path:    Pointer("layout", "items", strconv.Itoa(n)),
				Keyword: WarnOverflow,
				Message: fmt.Sprintf("item spans columns %d to %d of %d", x, x+w, cols),
			})
		}
	}

	for id, raw := range components {
		c, _ := raw.(map[string]any)
		if c == nil {
			continue
		}
		typ, _ := c["type"].(string)
		switch page.Type(typ) {
		case page.TypeVegaLite:
			spec, _ := c["spec"].(map[string]any)
			if d, ok := spec["data"].(map[string]any); ok {
				if _, ok := d["values"]; ok {
					warns = append(warns, StructuredError{
						Path:    Pointer("components", id, "spec", "data", "values"),
						Keyword: WarnInlineData,
						Message: "chart spec carries literal rows; bind a dataset through dataRef instead",
					})
				}
			}
			if _, ok := spec["datasets"]; ok {
				warns = append(warns, StructuredError{
					Path:    Pointer("components", id, "spec", "datasets"),
					Keyword: WarnInlineData,
					Message: "chart spec carries literal datasets; bind a dataset through dataRef instead",
				})
			}
		case page.TypeMarkdown, page.TypeMermaid:
			if _, ok := c["dataRef"]; ok {
				warns = append(warns, StructuredError{
					Path:    Pointer("components", id, "dataRef"),
					Keyword: WarnUnusedDataRef,
					Message: fmt.Sprintf("%s components do not read datasets", typ),
				})
			}
		}
		if ref, ok := c["dataRef"].(string); ok && ref != "" {
			if _, ok := data[ref]; !ok {
				warns = append(warns, StructuredError{
					Path:    Pointer("components", id, "dataRef"),
					Keyword: WarnUnresolvedRef,
					Message: fmt.Sprintf("dataset %q is not defined; the component renders without rows", ref),
				})
			}
		}
		if !placed[id] {
			warns = append(warns, StructuredError{
				Path:    Pointer("components", id),
				Keyword: WarnUnplaced,
				Message: fmt.Sprintf("component %q has no layout item", id),
			})
		}
	}
	return warns
}

func layoutItems(root map[string]any) []map[string]any {
	layout, _ := root["layout"].(map[string]any)
	raw, _ := layout["items"].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		item, _ := r.(map[string]any)
		if item == nil {
			item = map[string]any{}
		}
		items = append(items, item)
	}
	return items
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		return int(f), err == nil && f == float64(int(f))
	case float64:
		return int(n), n == float64(int(n))
	case int:
		return n, true
	}
	return 0, false
}
