package harness

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/born-ml/opcheck/internal/tensor"
)

// SizeError reports a Load target whose element count differs from the
// literal's. An Index below zero means the blob counts of the whole role
// group disagreed.
type SizeError struct {
	Role  Role
	Index int
	Want  int
	Got   int
}

func (e *SizeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("harness: %s holds %d blobs, literal holds %d", e.Role, e.Want, e.Got)
	}
	return fmt.Sprintf("harness: %s[%d] holds %d elements, literal holds %d", e.Role, e.Index, e.Want, e.Got)
}

// Dump writes every buffer group as a re-loadable Go literal, grouped by
// role in canonical order and annotated with an identifier derived from the
// label and the first input shape. The output is deterministic: dumping the
// same executor twice yields identical text.
func (e *Executor[T]) Dump(w io.Writer, label string) error {
	var sb strings.Builder

	sb.WriteString("var ___")
	sb.WriteString(label)
	sb.WriteString("_data_shape_")
	if len(e.inputShapes) > 0 {
		for _, dim := range e.inputShapes[0] {
			fmt.Fprintf(&sb, "%d_", dim)
		}
	}
	fmt.Fprintf(&sb, "_ = [][][]%s{\n", tensor.DataTypeOf[T]())

	for _, role := range Roles() {
		fmt.Fprintf(&sb, "\t{ // %s\n", role)
		for _, b := range e.sets[role] {
			sb.WriteString("\t\t{")
			for i := 0; i < b.NumElements(); i++ {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(formatElement(b, i))
			}
			sb.WriteString("},\n")
		}
		sb.WriteString("\t},\n")
	}
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// formatElement renders one element with just enough digits to restore the
// stored value exactly on reload.
func formatElement(b *tensor.Blob, i int) string {
	bits := 64
	switch b.DType() {
	case tensor.Float32, tensor.Float16:
		bits = 32
	}
	return strconv.FormatFloat(b.At(i), 'g', -1, bits)
}

// Load restores every buffer group from a full five-group literal.
// Panics with a SizeError on any blob-count or element-count mismatch.
func (e *Executor[T]) Load(data [][][]T) {
	if len(data) != RoleCount {
		panic(fmt.Sprintf("harness: literal holds %d groups, want %d", len(data), RoleCount))
	}
	for _, role := range Roles() {
		e.LoadRole(data[role], role)
	}
}

// LoadRole restores one buffer group from its literal.
func (e *Executor[T]) LoadRole(data [][]T, role Role) {
	checkRole(role)
	if len(data) != len(e.sets[role]) {
		panic(&SizeError{Role: role, Index: -1, Want: len(e.sets[role]), Got: len(data)})
	}
	for i, values := range data {
		e.LoadBlob(values, role, i)
	}
}

// LoadBlob restores a single buffer from its literal. The literal must hold
// exactly the buffer's element count; no truncation or padding.
func (e *Executor[T]) LoadBlob(values []T, role Role, index int) {
	checkRole(role)
	if index < 0 || index >= len(e.sets[role]) {
		panic(fmt.Sprintf("harness: %s[%d] out of range (%d blobs)", role, index, len(e.sets[role])))
	}
	b := e.sets[role][index]
	if len(values) != b.NumElements() {
		panic(&SizeError{Role: role, Index: index, Want: b.NumElements(), Got: len(values)})
	}
	for i, v := range values {
		b.SetAt(i, float64(v))
	}
}
