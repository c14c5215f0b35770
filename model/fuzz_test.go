package model

import (
	"errors"
	"testing"
)

func FuzzParse(f *testing.F) {
	f.Add([]byte(ordersJSON))
	f.Add([]byte(`{"base_table":"t","dimensions":[],"metrics":[]}`))
	f.Add([]byte(`{"base_table":"t","dimensions":[{"name":"a"}],"metrics":[]}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{`))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		def, err := Parse("fuzz", data)
		if err != nil {
			if def != nil {
				t.Fatalf("definition returned alongside error: %v", err)
			}
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Fatalf("error does not match ErrInvalidDefinition: %v", err)
			}
			return
		}
		if def.Filters == nil || def.Joins == nil {
			t.Fatalf("optional slices must be non-nil")
		}
	})
}
