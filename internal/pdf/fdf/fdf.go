// Package fdf reads and writes the FDF interchange format used to carry
// field values between documents and external tools. Only the flat
// name/value surface is handled; the package never interprets the PDF the
// data is destined for.
package fdf

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
)

// Data is one parsed form-data set: scalar values for text and choice
// fields, and name selections for buttons and checkboxes. Read-only once
// loaded.
type Data struct {
	Values  map[string]string
	Buttons map[string]string
}

var (
	header = "%FDF-"
	// /T before /V and the reverse both occur in the wild.
	pairTV = regexp.MustCompile(`/T\s*\(((?:\\.|[^\\()])*)\)\s*/V\s*(\((?:\\.|[^\\()])*\)|/[^\s/<>\[\]()]+|<[0-9A-Fa-f\s]*>)`)
	pairVT = regexp.MustCompile(`/V\s*(\((?:\\.|[^\\()])*\)|/[^\s/<>\[\]()]+|<[0-9A-Fa-f\s]*>)\s*/T\s*\(((?:\\.|[^\\()])*)\)`)
)

// Parse extracts every /T, /V pair from an FDF byte stream.
func Parse(raw []byte) (*Data, error) {
	content := string(raw)
	if !strings.HasPrefix(content, header) {
		return nil, pdferrors.Resource("parse form data", fmt.Errorf("missing %sheader", header))
	}
	d := &Data{
		Values:  make(map[string]string),
		Buttons: make(map[string]string),
	}
	for _, m := range pairTV.FindAllStringSubmatch(content, -1) {
		d.add(m[1], m[2])
	}
	for _, m := range pairVT.FindAllStringSubmatch(content, -1) {
		d.add(m[2], m[1])
	}
	return d, nil
}

// add routes one raw pair into the value or button map by the shape of
// its /V token.
func (d *Data) add(name, rawValue string) {
	name = unescape(name)
	switch {
	case strings.HasPrefix(rawValue, "/"):
		d.Buttons[name] = rawValue[1:]
	case strings.HasPrefix(rawValue, "<"):
		d.Values[name] = decodeHexString(rawValue)
	default:
		d.Values[name] = unescape(strings.TrimSuffix(strings.TrimPrefix(rawValue, "("), ")"))
	}
}

// Generate renders a minimal FDF document for the given mappings. pdfPath
// is recorded under /F when non-empty so external tools can locate the
// source document.
func Generate(values, buttons map[string]string, pdfPath string) []byte {
	var b strings.Builder
	b.WriteString("%FDF-1.2\n")
	b.WriteString("1 0 obj\n")
	b.WriteString("<< /FDF << /Fields [\n")
	for name, value := range values {
		fmt.Fprintf(&b, "<< /T (%s) /V (%s) >>\n", escape(name), escape(value))
	}
	for name, state := range buttons {
		fmt.Fprintf(&b, "<< /T (%s) /V /%s >>\n", escape(name), state)
	}
	b.WriteString("]\n")
	if pdfPath != "" {
		fmt.Fprintf(&b, "/F (%s)\n", escape(pdfPath))
	}
	b.WriteString(">> >>\n")
	b.WriteString("endobj\n")
	b.WriteString("trailer\n")
	b.WriteString("<< /Root 1 0 R >>\n")
	b.WriteString("%%EOF\n")
	return []byte(b.String())
}

// decodeHexString turns a <...> hex string into text, honoring a UTF-16BE
// byte-order mark.
func decodeHexString(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '<' || r == '>' || r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, raw)
	if len(cleaned)%2 == 1 {
		cleaned += "0"
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return ""
	}
	if len(decoded) >= 2 && decoded[0] == 0xfe && decoded[1] == 0xff {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, _, err := transform.Bytes(dec, decoded); err == nil {
			return string(out)
		}
	}
	return string(decoded)
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\n", `\n`, "\r", `\r`)
	return r.Replace(s)
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
