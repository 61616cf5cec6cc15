package checkpoint

import "crypto/sha512"

// BuildHash derives the HashSize-byte identity embedded in every
// checkpoint from the circuit description and analysis configuration that
// produced it (the original's OBJ_HASH, there baked in by the build
// process; here computed from the inputs that must match for a resumed
// checkpoint to be meaningful). sha512's 64-byte digest is exactly
// HashSize, so no truncation or padding is needed.
func BuildHash(circuitDigest []byte, cycles uint32, numSecrets uint64) [HashSize]byte {
	h := sha512.New()
	h.Write(circuitDigest)
	var scratch [12]byte
	scratch[0] = byte(cycles)
	scratch[1] = byte(cycles >> 8)
	scratch[2] = byte(cycles >> 16)
	scratch[3] = byte(cycles >> 24)
	for i := 0; i < 8; i++ {
		scratch[4+i] = byte(numSecrets >> (8 * i))
	}
	h.Write(scratch[:])
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
