package canon

import (
	"errors"
	"strings"
	"testing"
)

func TestSum_KnownVectors(t *testing.T) {
	cases := map[string]string{
		"":    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"{}":  "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a",
		"abc": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}
	for in, want := range cases {
		if got := Sum([]byte(in)).String(); got != want {
			t.Fatalf("Sum(%q): got %s want %s", in, got, want)
		}
		got, err := SumReader(strings.NewReader(in))
		if err != nil {
			t.Fatalf("SumReader: %v", err)
		}
		if got.String() != want {
			t.Fatalf("SumReader(%q): got %s want %s", in, got, want)
		}
	}
}

func TestParseContentHash(t *testing.T) {
	h := Sum([]byte("abc"))
	back, err := ParseContentHash(strings.ToUpper(h.String()))
	if err != nil {
		t.Fatalf("ParseContentHash: %v", err)
	}
	if back != h {
		t.Fatalf("round trip mismatch")
	}
	for _, bad := range []string{"", "abc", strings.Repeat("g", 64), h.String() + "00"} {
		if _, err := ParseContentHash(bad); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("ParseContentHash(%q): expected ErrInvalidHash, got %v", bad, err)
		}
	}
}
