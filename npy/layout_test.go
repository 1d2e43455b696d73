package npy

import (
	"errors"
	"testing"
)

func TestLayoutOffsetsAndStride(t *testing.T) {
	t.Parallel()

	l, err := NewLayout([]Field{
		{Label: "a", Tag: 'i', Size: 4},
		{Label: "b", Tag: 'b', Size: 1},
		{Label: "c", Tag: 'u', Size: 2},
	})
	if err != nil {
		t.Fatalf("new layout: %v", err)
	}

	if got := l.Stride(); got != 7 {
		t.Fatalf("stride: got %d want 7", got)
	}
	wantOffsets := []int{0, 4, 5}
	for i, want := range wantOffsets {
		if got := l.Offset(i); got != want {
			t.Fatalf("offset of field %d: got %d want %d", i, got, want)
		}
	}
	if !l.HasBool() {
		t.Fatalf("HasBool: got false")
	}
}

func TestLayoutLookup(t *testing.T) {
	t.Parallel()

	l, err := NewLayout([]Field{
		{Label: "x", Tag: 'f', Size: 8},
		{Label: "y", Tag: 'f', Size: 8},
	})
	if err != nil {
		t.Fatalf("new layout: %v", err)
	}
	i, err := l.Lookup("y")
	if err != nil {
		t.Fatalf("lookup y: %v", err)
	}
	if i != 1 {
		t.Fatalf("lookup y: got index %d want 1", i)
	}
	if _, err := l.Lookup("z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup z: got %v, want ErrNotFound", err)
	}
}

func TestLayoutCheckSizes(t *testing.T) {
	t.Parallel()

	l, err := NewLayout([]Field{
		{Label: "a", Tag: 'i', Size: 4},
		{Label: "b", Tag: 'f', Size: 8},
	})
	if err != nil {
		t.Fatalf("new layout: %v", err)
	}
	if err := l.CheckSizes([]int{4, 8}); err != nil {
		t.Fatalf("matching sizes rejected: %v", err)
	}
	if err := l.CheckSizes([]int{4, 4}); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("wrong size: got %v, want ErrTypeMismatch", err)
	}
	if err := l.CheckSizes([]int{4}); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("wrong count: got %v, want ErrTypeMismatch", err)
	}
}

func TestLayoutRejectsBadFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		fields []Field
	}{
		{"empty", nil},
		{"bool wider than one byte", []Field{{Tag: 'b', Size: 4}}},
		{"zero size", []Field{{Tag: 'i', Size: 0}}},
		{"unknown tag", []Field{{Tag: 'x', Size: 4}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewLayout(tc.fields); !errors.Is(err, ErrFormat) {
				t.Fatalf("got %v, want ErrFormat", err)
			}
		})
	}
}
