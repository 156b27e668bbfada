package device

import "github.com/OverviewCorporation/aravis/pkg/gvcp"

// readMemoryChunked splits a READ_MEMORY of the given size into
// gvcp.DataSizeMax chunks, issuing one exchange per chunk and
// concatenating the results.
func (s *Session) readMemoryChunked(address uint32, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	for remaining := size; remaining > 0; {
		chunk := remaining
		if chunk > gvcp.DataSizeMax {
			chunk = gvcp.DataSizeMax
		}

		data, err := s.readMemory(address, uint16(chunk))
		if err != nil {
			return nil, err
		}

		out = append(out, data...)
		address += uint32(chunk)
		remaining -= chunk
	}
	return out, nil
}

// writeMemoryChunked splits a WRITE_MEMORY of data into gvcp.DataSizeMax
// chunks, issuing one exchange per chunk.
func (s *Session) writeMemoryChunked(address uint32, data []byte) error {
	for len(data) > 0 {
		chunk := data
		if len(chunk) > gvcp.DataSizeMax {
			chunk = chunk[:gvcp.DataSizeMax]
		}

		if err := s.writeMemory(address, chunk); err != nil {
			return err
		}

		address += uint32(len(chunk))
		data = data[len(chunk):]
	}
	return nil
}
