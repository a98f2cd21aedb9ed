package services

import (
	cryptorand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// GeneratedCode is one candidate identifier plus the public URL a holder
// scans to verify it.
type GeneratedCode struct {
	CodeID          string
	VerificationURL string
}

// CodeGenerator produces candidate per-unit identifiers. Collisions are
// possible (if vanishingly unlikely); global uniqueness is enforced by
// the store's constraint and the issuer's retry loop, not here.
type CodeGenerator interface {
	Generate(batchID uuid.UUID, serialNumber int) (GeneratedCode, error)
}

type codeGenerator struct {
	verifyBaseURL string

	mu   sync.Mutex
	rand io.Reader
}

// NewCodeGenerator builds a generator. randSource may be nil, in which
// case crypto/rand is used; tests inject a deterministic source.
func NewCodeGenerator(verifyBaseURL string, randSource io.Reader) CodeGenerator {
	if randSource == nil {
		randSource = cryptorand.Reader
	}
	return &codeGenerator{
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		rand:          randSource,
	}
}

// Generate derives a code from the batch/serial context plus 48 random
// bits, e.g. SD-3F2A9C81-00042-D41D8CD98F00.
func (g *codeGenerator) Generate(batchID uuid.UUID, serialNumber int) (GeneratedCode, error) {
	buf := make([]byte, 6)
	g.mu.Lock()
	_, err := io.ReadFull(g.rand, buf)
	g.mu.Unlock()
	if err != nil {
		return GeneratedCode{}, fmt.Errorf("read random source: %w", err)
	}
	batchPart := strings.ToUpper(strings.ReplaceAll(batchID.String(), "-", ""))[:8]
	codeID := fmt.Sprintf("SD-%s-%05d-%s", batchPart, serialNumber, strings.ToUpper(hex.EncodeToString(buf)))
	return GeneratedCode{
		CodeID:          codeID,
		VerificationURL: g.verifyBaseURL + "/verify/" + codeID,
	}, nil
}
