package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCodeGeneratorDeterministicWithInjectedSource(t *testing.T) {
	batchID := uuid.MustParse("3f2a9c81-0000-0000-0000-000000000000")
	src := bytes.NewReader([]byte{0xd4, 0x1d, 0x8c, 0xd9, 0x8f, 0x00})
	gen := NewCodeGenerator("http://localhost:8080/", src)

	got, err := gen.Generate(batchID, 42)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.CodeID != "SD-3F2A9C81-00042-D41D8CD98F00" {
		t.Fatalf("CodeID = %q", got.CodeID)
	}
	if got.VerificationURL != "http://localhost:8080/verify/SD-3F2A9C81-00042-D41D8CD98F00" {
		t.Fatalf("VerificationURL = %q", got.VerificationURL)
	}
}

func TestCodeGeneratorExhaustedSource(t *testing.T) {
	gen := NewCodeGenerator("http://localhost:8080", bytes.NewReader([]byte{0x01}))
	if _, err := gen.Generate(uuid.New(), 1); err == nil {
		t.Fatal("expected error from exhausted random source")
	}
}

func TestCodeGeneratorDistinctIDs(t *testing.T) {
	gen := NewCodeGenerator("http://localhost:8080", nil)
	batchID := uuid.New()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		got, err := gen.Generate(batchID, 7)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[got.CodeID] {
			t.Fatalf("duplicate code id %q", got.CodeID)
		}
		seen[got.CodeID] = true
		if !strings.HasPrefix(got.CodeID, "SD-") {
			t.Fatalf("unexpected code id format %q", got.CodeID)
		}
	}
}
