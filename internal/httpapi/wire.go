package httpapi

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/palletizer/registry/internal/index"
)

// InvalidBodyFramingError reports that a Cargo publish request body did not
// follow the `u32 LE len | bytes` framing the wire format requires.
type InvalidBodyFramingError struct {
	Reason string
}

func (e *InvalidBodyFramingError) Error() string {
	return fmt.Sprintf("invalid publish request body: %s", e.Reason)
}

// parsePublishBody reads the Cargo publish wire format:
//
//	u32 LE len_meta | meta (JSON, len_meta bytes) | u32 LE len_crate | crate blob (len_crate bytes)
//
// The body must end exactly at the blob's last byte; any trailing bytes are
// treated as a framing error. Unknown fields in meta are ignored, per the
// wire contract.
func parsePublishBody(body io.Reader) (*index.NewCrateMeta, []byte, error) {
	metaLen, err := readU32LE(body)
	if err != nil {
		return nil, nil, &InvalidBodyFramingError{Reason: "failed to read metadata length: " + err.Error()}
	}
	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(body, metaBytes); err != nil {
		return nil, nil, &InvalidBodyFramingError{Reason: "failed to read metadata body: " + err.Error()}
	}

	var meta index.NewCrateMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, nil, &InvalidBodyFramingError{Reason: "failed to parse metadata JSON: " + err.Error()}
	}

	crateLen, err := readU32LE(body)
	if err != nil {
		return nil, nil, &InvalidBodyFramingError{Reason: "failed to read crate blob length: " + err.Error()}
	}
	blob := make([]byte, crateLen)
	if _, err := io.ReadFull(body, blob); err != nil {
		return nil, nil, &InvalidBodyFramingError{Reason: "failed to read crate blob: " + err.Error()}
	}

	var trailer [1]byte
	if n, _ := body.Read(trailer[:]); n > 0 {
		return nil, nil, &InvalidBodyFramingError{Reason: "trailing bytes after crate blob"}
	}

	return &meta, blob, nil
}

func readU32LE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
