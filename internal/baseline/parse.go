package baseline

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes dump text into its label and buffer groups. Values parse into
// float64 regardless of the dumped element type, so one baseline comparison
// path serves every executor instantiation.
func Parse(dump string) (label string, groups [][][]float64, err error) {
	lines := strings.Split(strings.TrimSuffix(dump, "\n"), "\n")

	header := lines[0]
	const prefix = "var ___"
	marker := strings.Index(header, "_data_shape_")
	if !strings.HasPrefix(header, prefix) || marker < len(prefix) || !strings.HasSuffix(header, "{") {
		return "", nil, fmt.Errorf("%w: bad header %q", ErrMalformed, header)
	}
	label = header[len(prefix):marker]

	var current [][]float64
	inGroup := false
	closed := false

	for i, line := range lines[1:] {
		lineno := i + 2
		if closed {
			return "", nil, fmt.Errorf("%w: line %d after closing brace", ErrMalformed, lineno)
		}
		switch {
		case strings.HasPrefix(line, "\t\t{"):
			if !inGroup || !strings.HasSuffix(line, "},") {
				return "", nil, fmt.Errorf("%w: line %d: %q", ErrMalformed, lineno, line)
			}
			body := strings.TrimSuffix(strings.TrimPrefix(line, "\t\t{"), "},")
			vals, err := parseValues(body)
			if err != nil {
				return "", nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineno, err)
			}
			current = append(current, vals)
		case strings.HasPrefix(line, "\t{ //"):
			if inGroup {
				return "", nil, fmt.Errorf("%w: line %d: nested group", ErrMalformed, lineno)
			}
			inGroup = true
			current = make([][]float64, 0)
		case line == "\t},":
			if !inGroup {
				return "", nil, fmt.Errorf("%w: line %d: unmatched close", ErrMalformed, lineno)
			}
			groups = append(groups, current)
			inGroup = false
		case line == "}":
			if inGroup {
				return "", nil, fmt.Errorf("%w: line %d: unterminated group", ErrMalformed, lineno)
			}
			closed = true
		default:
			return "", nil, fmt.Errorf("%w: line %d: %q", ErrMalformed, lineno, line)
		}
	}
	if !closed {
		return "", nil, fmt.Errorf("%w: missing closing brace", ErrMalformed)
	}
	return label, groups, nil
}

func parseValues(body string) ([]float64, error) {
	if body == "" {
		return []float64{}, nil
	}
	fields := strings.Split(body, ", ")
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
		vals[i] = v
	}
	return vals, nil
}
