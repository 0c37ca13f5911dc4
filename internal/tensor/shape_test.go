package tensor

import "testing"

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  int
	}{
		{"scalar", Shape{}, 1},
		{"vector", Shape{5}, 5},
		{"matrix", Shape{3, 4}, 12},
		{"batch", Shape{2, 3, 4, 5}, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.NumElements(); got != tt.want {
				t.Errorf("NumElements() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{}).Validate(); err == nil {
		t.Error("empty shape accepted")
	}
	if err := (Shape{2, 0, 3}).Validate(); err == nil {
		t.Error("zero dimension accepted")
	}
	if err := (Shape{-1, 3}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestShapeEqual(t *testing.T) {
	a := Shape{2, 3, 4}
	if !a.Equal(Shape{2, 3, 4}) {
		t.Error("equal shapes reported unequal")
	}
	if a.Equal(Shape{2, 3}) {
		t.Error("different ranks reported equal")
	}
	if a.Equal(Shape{2, 3, 5}) {
		t.Error("different dims reported equal")
	}
}

func TestShapeClone(t *testing.T) {
	orig := Shape{2, 3}
	clone := orig.Clone()
	clone[0] = 99
	if orig[0] != 2 {
		t.Error("Clone() shares memory with the original")
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Errorf("stride[%d] = %d, want %d", i, strides[i], want[i])
		}
	}
}
