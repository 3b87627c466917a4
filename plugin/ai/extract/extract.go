// Package extract turns free-form model replies into typed fields. Extraction never
// fails: a reply that is not clean JSON is read field by field and reported as
// degraded.
package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Status tells how a result was obtained.
type Status string

const (
	// StatusStrict means the reply was a well-formed JSON object.
	StatusStrict Status = "strict"
	// StatusDegraded means some or all fields were recovered heuristically.
	StatusDegraded Status = "degraded"
)

// Kind is the type of a field.
type Kind int

const (
	// KindString fields keep the reply text as is, trimmed.
	KindString Kind = iota
	// KindInt fields are rounded to the nearest integer.
	KindInt
)

// Field is one expected key of the reply object.
type Field struct {
	Name string
	Kind Kind
}

// Shape lists the fields of a flow and names its primary field, the one that receives
// the whole reply when nothing else could be recovered.
type Shape struct {
	Fields  []Field
	Primary string
}

// Result carries every field of a shape. Missing fields are empty or zero, and absent
// from Found.
type Result struct {
	Status  Status
	Strings map[string]string
	Ints    map[string]int
	// Found holds the fields actually read from the reply. A primary field filled with
	// the whole reply is not in it.
	Found map[string]bool
}

func newResult(shape Shape) Result {
	r := Result{Strings: map[string]string{}, Ints: map[string]int{}, Found: map[string]bool{}}
	for _, f := range shape.Fields {
		if f.Kind == KindInt {
			r.Ints[f.Name] = 0
		} else {
			r.Strings[f.Name] = ""
		}
	}
	return r
}

// Extract reads shape's fields out of raw.
func Extract(raw string, shape Shape) Result {
	result := newResult(shape)
	cleaned := Clean(raw)
	if cleaned == "" {
		result.Status = StatusDegraded
		return result
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(cleaned), &object); err == nil && object != nil {
		result.Status = StatusStrict
		for _, f := range shape.Fields {
			value, ok := object[f.Name]
			if !ok {
				continue
			}
			if f.Kind == KindInt {
				if n, ok := coerceInt(value); ok {
					result.Ints[f.Name], result.Found[f.Name] = n, true
				}
			} else {
				result.setString(f.Name, coerceString(f.Name, value))
			}
		}
		fillPrimary(&result, shape, cleaned)
		return result
	}

	result.Status = StatusDegraded
	sections := parseSections(cleaned)
	for _, f := range shape.Fields {
		if f.Kind == KindInt {
			n, ok := findInt(cleaned, f.Name)
			if !ok {
				n, ok = leadingInt(sections[sectionKey(f.Name)])
			}
			if ok {
				result.Ints[f.Name], result.Found[f.Name] = n, true
			}
			continue
		}
		value, ok := findString(cleaned, f.Name)
		if !ok {
			value = sections[sectionKey(f.Name)]
		}
		result.setString(f.Name, value)
	}
	fillPrimary(&result, shape, cleaned)
	return result
}

func (r *Result) setString(name, value string) {
	r.Strings[name] = strings.TrimSpace(value)
	if r.Strings[name] != "" {
		r.Found[name] = true
	}
}

// fillPrimary puts the whole reply into an empty primary field so the caller always has
// something to show. A strict result filled this way becomes degraded.
func fillPrimary(result *Result, shape Shape, cleaned string) {
	if shape.Primary == "" || result.Strings[shape.Primary] != "" {
		return
	}
	result.Strings[shape.Primary] = cleaned
	result.Status = StatusDegraded
}

// Clean trims raw and removes a surrounding ```json ... ``` fence.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func coerceString(name string, value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any:
		// One level of nesting: {"response": {"response": "..."}} or {"response": {"text": "..."}}.
		if inner, ok := v[name].(string); ok {
			return inner
		}
		if len(v) == 1 {
			for _, inner := range v {
				if s, ok := inner.(string); ok {
					return s
				}
			}
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func coerceInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(math.Round(v)), true
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(math.Round(f)), true
		}
	}
	return 0, false
}

type fieldPatterns struct {
	quoted    *regexp.Regexp
	truncated *regexp.Regexp
	number    *regexp.Regexp
}

// compiled caches the patterns of each field name.
var compiled sync.Map

func patternsFor(name string) *fieldPatterns {
	if p, ok := compiled.Load(name); ok {
		return p.(*fieldPatterns)
	}
	key := `(?i)"?` + regexp.QuoteMeta(name) + `"?\s*:\s*`
	p, _ := compiled.LoadOrStore(name, &fieldPatterns{
		quoted:    regexp.MustCompile(key + `"((?:[^"\\]|\\.)*)"`),
		truncated: regexp.MustCompile(key + `"((?:[^"\\]|\\.)*)$`), // cut off inside the value
		number:    regexp.MustCompile(key + `"?(-?\d+)`),
	})
	return p.(*fieldPatterns)
}

func findString(text, name string) (string, bool) {
	p := patternsFor(name)
	for _, pattern := range []*regexp.Regexp{p.quoted, p.truncated} {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if unquoted, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
			return unquoted, true
		}
		return m[1], true
	}
	return "", false
}

func findInt(text, name string) (int, bool) {
	m := patternsFor(name).number.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

var firstInt = regexp.MustCompile(`-?\d+`)

func leadingInt(text string) (int, bool) {
	m := firstInt.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

func sectionKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}

// parseSections reads the "### Heading:" layout of the older prompt format.
func parseSections(text string) map[string]string {
	sections := map[string]string{}
	current := ""
	var body strings.Builder
	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(body.String())
		}
		body.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "###") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if label, rest, ok := strings.Cut(heading, ":"); ok {
				flush()
				current = strings.ToLower(strings.TrimSpace(label))
				body.WriteString(rest)
				body.WriteString("\n")
				continue
			}
		}
		if current != "" {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()
	return sections
}
