package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParseUsuarioID checks that parsing never panics on arbitrary input and
// never returns both a usable ID and an error.
func FuzzParseUsuarioID(f *testing.F) {
	f.Add("")
	f.Add(uuid.NewString())
	f.Add(uuid.Nil.String())
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE usuarios;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUsuarioID(input)
		if err != nil {
			if !id.IsNil() {
				t.Fatalf("error with non-nil id %s for input %q", id, input)
			}
			return
		}
		if id.IsNil() {
			t.Fatalf("nil id accepted for input %q", input)
		}
		// A successful parse must round-trip through the canonical form.
		if _, rerr := ParseUsuarioID(id.String()); rerr != nil {
			t.Fatalf("canonical form %s failed to re-parse: %v", id, rerr)
		}
	})
}
