package query

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"marketplace/readmodel"
)

// InvalidCursorError marks a pagination token the engine could not
// decode. It maps to a 4xx response at the edge, not a 5xx.
type InvalidCursorError struct {
	Token string
}

func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("invalid pagination cursor %q", e.Token)
}

// encodeCursor packs a cursor into a compact URL-safe token: the sort
// key as 8 big-endian bytes followed by the uvarint-length-prefixed
// natural key.
func encodeCursor(c readmodel.IndexCursor) string {
	buf := make([]byte, 8, 8+binary.MaxVarintLen64+len(c.ID))
	binary.BigEndian.PutUint64(buf, math.Float64bits(c.Score))
	buf = binary.AppendUvarint(buf, uint64(len(c.ID)))
	buf = append(buf, c.ID...)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func decodeCursor(token string) (*readmodel.IndexCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < 9 {
		return nil, &InvalidCursorError{Token: token}
	}
	score := math.Float64frombits(binary.BigEndian.Uint64(raw[:8]))
	n, read := binary.Uvarint(raw[8:])
	if read <= 0 || int(n) != len(raw)-8-read {
		return nil, &InvalidCursorError{Token: token}
	}
	return &readmodel.IndexCursor{Score: score, ID: string(raw[8+read:])}, nil
}
