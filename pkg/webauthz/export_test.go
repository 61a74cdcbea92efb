package webauthz

// SwapRandRead replaces the client_state entropy source until restore is
// called.
func SwapRandRead(read func([]byte) (int, error)) (restore func()) {
	old := randRead
	randRead = read
	return func() { randRead = old }
}
