package username

import (
	"bytes"
	"regexp"
	"testing"
)

var reference = regexp.MustCompile(Pattern)

// FuzzValidate checks the hand-written validator against the documented
// pattern for arbitrary byte input.
func FuzzValidate(f *testing.F) {
	f.Add([]byte("alice001"))
	f.Add([]byte("abc123"))
	f.Add([]byte("ABC123"))
	f.Add([]byte("abcdefghijklmnop123"))
	f.Add([]byte("abc\x00123"))
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, input []byte) {
		got := Validate(input)
		want := reference.Match(input)
		if got != want {
			t.Fatalf("Validate(%q) = %v, pattern says %v", input, got, want)
		}
		if got && !ValidIfLowercased(input) {
			t.Fatalf("valid input %q rejected by lowercase check", input)
		}
		if ValidIfLowercased(input) && !Validate(bytes.ToLower(input)) {
			t.Fatalf("lowercase check accepted %q but lowercased form is invalid", input)
		}
	})
}
