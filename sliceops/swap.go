package sliceops

// SwapBuf returns a reversed copy of in. The security manager keeps all
// values in wire order (little endian) while the crypto toolkit wants MSB
// first, so buffers get swapped at that boundary.
func SwapBuf(in []byte) []byte {
	a := make([]byte, 0, len(in))
	a = append(a, in...)
	for i := len(a)/2 - 1; i >= 0; i-- {
		opp := len(a) - 1 - i
		a[i], a[opp] = a[opp], a[i]
	}

	return a
}
