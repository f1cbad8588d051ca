package types

import (
	"encoding/json"
	"testing"
)

func TestJSONEqualNormalizesNumbers(t *testing.T) {
	if !JSONEqual(7, float64(7)) {
		t.Fatal("expected int and float64 to compare equal")
	}
	if !JSONEqual(json.Number("3"), int64(3)) {
		t.Fatal("expected json.Number to compare equal")
	}
	if JSONEqual("7", 7) {
		t.Fatal("string and number must differ")
	}
	if !JSONEqual(map[string]any{"a": []any{1, "x"}}, map[string]any{"a": []any{1.0, "x"}}) {
		t.Fatal("expected nested values to normalize")
	}
}

func TestIsBlank(t *testing.T) {
	for _, v := range []any{nil, "", "   "} {
		if !IsBlank(v) {
			t.Fatalf("expected %v to be blank", v)
		}
	}
	if IsBlank(0) || IsBlank(false) || IsBlank("x") {
		t.Fatal("zero values other than nil/empty string are not blank")
	}
}

func TestStringValue(t *testing.T) {
	cases := map[string]any{"7": float64(7), "2.5": 2.5, "abc": "abc", "": nil, "true": true}
	for want, in := range cases {
		if got := StringValue(in); got != want {
			t.Fatalf("StringValue(%v) = %q, want %q", in, got, want)
		}
	}
}
