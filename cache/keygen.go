package cache

import (
	"encoding/hex"
	"os"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/climaterisk-co/risk-cache/types"
	"github.com/climaterisk-co/risk-cache/utils"
)

// keySeparator joins the key material components. The unit-separator control
// byte does not occur in file paths or canonical JSON.
const keySeparator = "\x1f|\x1f"

// KeyGenerator derives deterministic cache keys from an operation identity,
// the signatures of its input files, its call parameters and the subset of
// configuration that affects its output.
type KeyGenerator struct{}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// Signatures stats each path and returns signatures for those that exist.
// Missing files are skipped rather than treated as errors: an absent input
// simply contributes nothing to the key.
func (g *KeyGenerator) Signatures(fileRefs []string) []types.FileSignature {
	sigs := make([]types.FileSignature, 0, len(fileRefs))
	for _, path := range fileRefs {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		sigs = append(sigs, types.FileSignature{
			Path:      path,
			ModTimeNS: info.ModTime().UnixNano(),
			SizeBytes: info.Size(),
		})
	}
	return sigs
}

// Generate derives the cache key for one operation invocation. Identical
// inputs always yield the identical key, across calls and across process
// restarts. Generate performs no I/O beyond stat-ing fileRefs and never
// fails: values without a canonical encoding degrade to their textual form.
func (g *KeyGenerator) Generate(operationID string, fileRefs []string, parameters interface{}, configSubset map[string]interface{}) string {
	digest, _ := blake2b.New256(nil)

	digest.Write([]byte(operationID))

	buf := make([]byte, 0, 64)
	for _, sig := range g.Signatures(fileRefs) {
		digest.Write([]byte(keySeparator))
		digest.Write([]byte(sig.Path))

		buf = buf[:0]
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, sig.ModTimeNS, 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, sig.SizeBytes, 10)
		digest.Write(buf)
	}

	digest.Write([]byte(keySeparator))
	digest.Write(utils.CanonicalMarshal(parameters))
	digest.Write([]byte(keySeparator))
	digest.Write(utils.CanonicalMarshal(configSubset))

	return hex.EncodeToString(digest.Sum(nil))
}
