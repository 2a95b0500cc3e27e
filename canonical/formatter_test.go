package canonical

import "testing"

func TestMarshalSortsKeys(t *testing.T) {
	v := map[string]interface{}{
		"b": 1,
		"a": 2,
		"c": map[string]interface{}{"z": 1, "y": 2},
	}
	got, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":2,"b":1,"c":{"y":2,"z":1}}`
	if string(got) != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
}

func TestMarshalNoWhitespace(t *testing.T) {
	got, err := Marshal([]interface{}{1, 2, "three"})
	if err != nil {
		t.Fatal(err)
	}
	want := `[1,2,"three"]`
	if string(got) != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
}

func TestEqualRoundTrip(t *testing.T) {
	a := []byte(`{"a": 1, "b": [1,2,3]}`)
	b := []byte(`{"b":[1,2,3],"a":1}`)
	ok, err := Equal(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected equal canonical forms")
	}
}

// Property (spec §8): encode(decode(encode(x))) == encode(x).
func TestCanonicalIdempotent(t *testing.T) {
	v := map[string]interface{}{"nested": map[string]interface{}{"x": 1}, "list": []interface{}{"a", "b"}}
	first, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	second, err := canonicalizeBytes(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatalf("canonical form is not idempotent: %s != %s", first, second)
	}
}
