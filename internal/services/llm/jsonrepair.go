// -----------------------------------------------------------------------
// JSON Repair - Recovery of malformed model output before decoding
// -----------------------------------------------------------------------

package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidJSON indicates model output that could not be recovered into
// valid JSON even after repair.
var ErrInvalidJSON = errors.New("invalid json")

// Repair attempts to turn common model output mistakes into valid JSON:
// fenced code blocks, prose around the object, single-quoted strings and
// trailing commas. Returns ErrInvalidJSON when the text cannot be recovered.
func Repair(text string) (string, error) {
	text = unwrapCodeFence(text)
	text = extractEnclosed(text)

	if text == "" {
		return "", ErrInvalidJSON
	}
	if json.Valid([]byte(text)) {
		return text, nil
	}

	repaired := repairQuotesAndCommas(text)
	if json.Valid([]byte(repaired)) {
		return repaired, nil
	}

	return "", ErrInvalidJSON
}

// Decode repairs the text and unmarshals it into v
func Decode(text string, v interface{}) error {
	repaired, err := Repair(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), v)
}

// unwrapCodeFence strips a markdown code fence wrapper when present,
// e.g. ```json\n{...}\n```
func unwrapCodeFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}

	inner := text[start+3:]
	// Skip the optional language tag on the opening fence
	if newline := strings.IndexByte(inner, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(inner[:newline])
		if firstLine == "json" || firstLine == "JSON" || firstLine == "" {
			inner = inner[newline+1:]
		}
	}

	if end := strings.Index(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}

// extractEnclosed trims prose surrounding the outermost JSON value
func extractEnclosed(text string) string {
	text = strings.TrimSpace(text)

	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	start := objStart
	openClose := [2]byte{'{', '}'}
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		openClose = [2]byte{'[', ']'}
	}
	if start < 0 {
		return ""
	}

	end := strings.LastIndexByte(text, openClose[1])
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

// repairQuotesAndCommas rewrites single-quoted strings as double-quoted and
// drops trailing commas before closing braces and brackets.
func repairQuotesAndCommas(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	inDouble := false
	inSingle := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escaped {
			out.WriteByte(c)
			escaped = false
			continue
		}

		switch {
		case c == '\\' && (inDouble || inSingle):
			out.WriteByte(c)
			escaped = true

		case c == '"' && !inSingle:
			inDouble = !inDouble
			out.WriteByte(c)

		case c == '"' && inSingle:
			// Double quote inside a single-quoted string needs escaping
			out.WriteString(`\"`)

		case c == '\'' && !inDouble:
			// Single quote acting as a string delimiter
			inSingle = !inSingle
			out.WriteByte('"')

		case c == ',' && !inDouble && !inSingle:
			// Drop the comma when the next non-space byte closes a scope
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
			out.WriteByte(c)

		default:
			out.WriteByte(c)
		}
	}

	return out.String()
}
