package embedding

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math/rand"

	"creatorpulse/internal/ports"
)

// Dimensions is the fixed vector length every provider must honor.
const Dimensions = 768

// DeterministicStub fabricates embeddings by seeding a PRNG from the
// text's hash. The same text always yields the same vector, which keeps
// dedup-adjacent behavior reproducible in tests and in deployments
// without an embedding backend. It is a stand-in, not a semantic model:
// similarity scores from it are meaningless beyond equality of inputs.
type DeterministicStub struct{}

var _ ports.EmbeddingProvider = DeterministicStub{}

// Embed returns a Dimensions-length vector derived only from text.
func (DeterministicStub) Embed(_ context.Context, text string) ([]float64, error) {
	sum := md5.Sum([]byte(text))
	seed := int64(binary.LittleEndian.Uint64(sum[:8]))

	rng := rand.New(rand.NewSource(seed))
	vector := make([]float64, Dimensions)
	for i := range vector {
		vector[i] = rng.Float64()*2 - 1
	}
	return vector, nil
}
