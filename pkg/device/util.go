package device

import (
	"fmt"
	"io"
)

// readAllLimited reads at most limit+1 bytes from r, erroring if the
// stream turns out to be larger than limit, so a misbehaving or
// malicious schema endpoint can't exhaust memory.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("device: response exceeds %d bytes", limit)
	}
	return data, nil
}
