package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// FieldKind discriminates the three field shapes the writer can patch.
type FieldKind int

const (
	KindText FieldKind = iota
	KindChoice
	KindButton
)

func (k FieldKind) String() string {
	switch k {
	case KindChoice:
		return "choice"
	case KindButton:
		return "button"
	default:
		return "text"
	}
}

// Field is one interactive form field. Each kind carries only the
// attributes relevant to it.
type Field interface {
	Name() string
	RawName() string
	Kind() FieldKind
	Value() string
	ObjectID() int
}

type fieldCommon struct {
	name     string
	rawName  string
	value    string
	objectID int
}

func (f fieldCommon) Name() string    { return f.name }
func (f fieldCommon) RawName() string { return f.rawName }
func (f fieldCommon) Value() string   { return f.value }
func (f fieldCommon) ObjectID() int   { return f.objectID }

// TextField is a /Tx field; AppearanceID points at its /AP /N stream
// object when one exists, so the writer can regenerate it after an edit.
type TextField struct {
	fieldCommon
	AppearanceID      int
	DefaultAppearance string
}

func (TextField) Kind() FieldKind { return KindText }

// ChoiceField is a /Ch field with its /Opt export values.
type ChoiceField struct {
	fieldCommon
	Options []string
}

func (ChoiceField) Kind() FieldKind { return KindChoice }

// ButtonField is a /Btn field (checkbox or radio group) together with the
// appearance-state names its widgets define.
type ButtonField struct {
	fieldCommon
	States []string
}

func (ButtonField) Kind() FieldKind { return KindButton }

var (
	fieldType    = regexp.MustCompile(`/FT\s*/(\w+)`)
	fieldName    = regexp.MustCompile(`/T\s*\(((?:\\.|[^\\()])*)\)`)
	fieldParent  = regexp.MustCompile(`/Parent\s+(\d+)\s+\d+\s+R`)
	valueString  = regexp.MustCompile(`/V\s*\(((?:\\.|[^\\()])*)\)`)
	valueName    = regexp.MustCompile(`/V\s*/([^\s/<>\[\]()]+)`)
	defaultApp   = regexp.MustCompile(`/DA\s*\(((?:\\.|[^\\()])*)\)`)
	appearanceN  = regexp.MustCompile(`/AP\s*<<\s*/N\s+(\d+)\s+\d+\s+R`)
	optionString = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)
	stateName    = regexp.MustCompile(`/([^\s/<>\[\]()]+)`)
)

// extractFields turns every object carrying a /FT key into a typed field,
// in file order. Two raw spellings of one logical name collapse to one
// entry; the first occurrence wins.
func extractFields(order []int, bodies map[int]string) []Field {
	var fields []Field
	seen := make(map[string]bool)
	for _, id := range order {
		body := bodies[id]
		ft := fieldType.FindStringSubmatch(body)
		if ft == nil {
			continue
		}
		name := qualifiedName(id, bodies)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		raw := ""
		if m := fieldName.FindStringSubmatch(body); m != nil {
			raw = m[1]
		}
		common := fieldCommon{name: name, rawName: raw, objectID: id, value: fieldValue(body)}

		switch ft[1] {
		case "Btn":
			fields = append(fields, ButtonField{fieldCommon: common, States: appearanceStates(body)})
		case "Ch":
			fields = append(fields, ChoiceField{fieldCommon: common, Options: choiceOptions(body)})
		default: // /Tx and anything unrecognized is treated as text
			tf := TextField{fieldCommon: common}
			if m := appearanceN.FindStringSubmatch(body); m != nil {
				tf.AppearanceID, _ = strconv.Atoi(m[1])
			}
			if m := defaultApp.FindStringSubmatch(body); m != nil {
				tf.DefaultAppearance = decodeLiteral(m[1])
			}
			fields = append(fields, tf)
		}
	}
	return fields
}

// qualifiedName builds the fully-qualified, normalized field name by
// walking /Parent references upward and joining /T components with the
// separator.
func qualifiedName(id int, bodies map[int]string) string {
	var parts []string
	for hops := 0; hops < 16; hops++ { // hierarchy depth bound
		body, ok := bodies[id]
		if !ok {
			break
		}
		if m := fieldName.FindStringSubmatch(body); m != nil {
			parts = append([]string{m[1]}, parts...)
		}
		p := fieldParent.FindStringSubmatch(body)
		if p == nil {
			break
		}
		id, _ = strconv.Atoi(p[1])
	}
	if len(parts) == 0 {
		return ""
	}
	return NormalizeName(strings.Join(parts, "."))
}

// fieldValue pulls the current /V out of an object body, whichever shape
// it takes.
func fieldValue(body string) string {
	if m := valueString.FindStringSubmatch(body); m != nil {
		return decodeLiteral(m[1])
	}
	if m := valueName.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// choiceOptions lists the /Opt export values of a choice field.
func choiceOptions(body string) []string {
	idx := strings.Index(body, "/Opt")
	if idx < 0 {
		return nil
	}
	open := strings.Index(body[idx:], "[")
	if open < 0 {
		return nil
	}
	close_ := strings.Index(body[idx+open:], "]")
	if close_ < 0 {
		return nil
	}
	inner := body[idx+open : idx+open+close_]
	var opts []string
	for _, m := range optionString.FindAllStringSubmatch(inner, -1) {
		opts = append(opts, decodeLiteral(m[1]))
	}
	return opts
}

// appearanceStates enumerates the /AP /N state names of a button field:
// one on-state per checkbox, one per option for a radio group, plus Off.
func appearanceStates(body string) []string {
	idx := strings.Index(body, "/AP")
	if idx < 0 {
		return nil
	}
	n := strings.Index(body[idx:], "/N")
	if n < 0 {
		return nil
	}
	inner := dictBody(body[idx+n+2:])
	var states []string
	seen := make(map[string]bool)
	for _, m := range stateName.FindAllStringSubmatch(inner, -1) {
		s := NormalizeName(m[1])
		if !seen[s] {
			seen[s] = true
			states = append(states, s)
		}
	}
	return states
}

// dictBody returns the content of the first << ... >> group in s,
// balancing nesting.
func dictBody(s string) string {
	open := strings.Index(s, "<<")
	if open < 0 {
		return ""
	}
	depth := 0
	for i := open; i+1 < len(s); i++ {
		switch {
		case s[i] == '<' && s[i+1] == '<':
			depth++
			i++
		case s[i] == '>' && s[i+1] == '>':
			depth--
			if depth == 0 {
				return s[open+2 : i]
			}
			i++
		}
	}
	return s[open+2:]
}

// NormalizeName collapses PDF name-object #xx hex escapes and literal
// string backslash escapes until a fixed point is reached, so two
// differently-escaped spellings of one field resolve to the same key and
// normalizing twice equals normalizing once.
func NormalizeName(raw string) string {
	prev := raw
	for {
		next := decodeLiteral(decodeNameEscapes(prev))
		if next == prev {
			return next
		}
		prev = next
	}
}

// decodeNameEscapes resolves #xx sequences in a PDF name.
func decodeNameEscapes(s string) string {
	if !strings.Contains(s, "#") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '#' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// decodeLiteral resolves the backslash escapes of a PDF literal string.
func decodeLiteral(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch c := s[i]; c {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '(', ')', '\\':
			b.WriteByte(c)
		default:
			if c >= '0' && c <= '7' {
				end := i
				for end < len(s) && end-i < 3 && s[end] >= '0' && s[end] <= '7' {
					end++
				}
				if v, err := strconv.ParseUint(s[i:end], 8, 16); err == nil && v < 256 {
					b.WriteByte(byte(v))
					i = end - 1
					break
				}
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}
