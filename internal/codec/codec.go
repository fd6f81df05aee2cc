// Package codec translates between the in-memory aggregate values in
// internal/aggregate and the length-delimited binary blobs stored in the
// root-timer, histogram, and profile columns (C3 in the design).
//
// No third-party serialization library appears anywhere in the retrieved
// example pack (protobuf/msgpack only show up in manifest-only stub repos
// with no source to ground an implementation on — see DESIGN.md), so this
// package is a small hand-rolled length-delimited format over
// encoding/binary, matching the teacher's own treatment of these columns
// as opaque blobs handled entirely in application code.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jeffpierce/aggrollup/internal/aggregate"
)

// EncodeHistogram serializes a histogram as 64 big-endian uint64 bucket
// counts.
func EncodeHistogram(h *aggregate.Histogram) []byte {
	buf := make([]byte, 8*len(h.Buckets))
	for i, c := range h.Buckets {
		binary.BigEndian.PutUint64(buf[i*8:], uint64(c))
	}
	return buf
}

// DecodeHistogram parses the wire format produced by EncodeHistogram.
func DecodeHistogram(data []byte) (*aggregate.Histogram, error) {
	h := &aggregate.Histogram{}
	if len(data) != 8*len(h.Buckets) {
		return nil, fmt.Errorf("codec: histogram blob has %d bytes, want %d", len(data), 8*len(h.Buckets))
	}
	for i := range h.Buckets {
		h.Buckets[i] = int64(binary.BigEndian.Uint64(data[i*8:]))
	}
	return h, nil
}

// EncodeRootTimers serializes a root-timer forest.
func EncodeRootTimers(timers []*aggregate.RootTimer) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRootTimers(&buf, timers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRootTimers parses the wire format produced by EncodeRootTimers.
func DecodeRootTimers(data []byte) ([]*aggregate.RootTimer, error) {
	r := bytes.NewReader(data)
	return readRootTimers(r)
}

func writeRootTimers(w *bytes.Buffer, timers []*aggregate.RootTimer) error {
	if err := writeUvarint(w, uint64(len(timers))); err != nil {
		return err
	}
	for _, t := range timers {
		if err := writeString(w, t.Name); err != nil {
			return err
		}
		if err := writeBool(w, t.Extended); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, t.TotalNanos); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, t.Count); err != nil {
			return err
		}
		if err := writeRootTimers(w, t.Children); err != nil {
			return err
		}
	}
	return nil
}

func readRootTimers(r *bytes.Reader) ([]*aggregate.RootTimer, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("codec: read root timer count: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]*aggregate.RootTimer, 0, n)
	for i := uint64(0); i < n; i++ {
		t := &aggregate.RootTimer{}
		if t.Name, err = readString(r); err != nil {
			return nil, err
		}
		if t.Extended, err = readBool(r); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &t.TotalNanos); err != nil {
			return nil, fmt.Errorf("codec: read root timer total_nanos: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &t.Count); err != nil {
			return nil, fmt.Errorf("codec: read root timer count: %w", err)
		}
		if t.Children, err = readRootTimers(r); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// EncodeProfile serializes a profile call tree. A nil root encodes as an
// empty byte slice.
func EncodeProfile(root *aggregate.ProfileNode) ([]byte, error) {
	if root == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := writeProfileNode(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeProfile parses the wire format produced by EncodeProfile. An empty
// slice decodes to a nil root.
func DecodeProfile(data []byte) (*aggregate.ProfileNode, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r := bytes.NewReader(data)
	return readProfileNode(r)
}

func writeProfileNode(w *bytes.Buffer, n *aggregate.ProfileNode) error {
	if err := writeString(w, n.FrameName); err != nil {
		return err
	}
	if err := writeString(w, n.LeafState); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, n.SampleCount); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(n.Children))); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := writeProfileNode(w, c); err != nil {
			return err
		}
	}
	return nil
}

func readProfileNode(r *bytes.Reader) (*aggregate.ProfileNode, error) {
	n := &aggregate.ProfileNode{}
	var err error
	if n.FrameName, err = readString(r); err != nil {
		return nil, err
	}
	if n.LeafState, err = readString(r); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &n.SampleCount); err != nil {
		return nil, fmt.Errorf("codec: read profile sample_count: %w", err)
	}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("codec: read profile child count: %w", err)
	}
	for i := uint64(0); i < count; i++ {
		child, err := readProfileNode(r)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func writeUvarint(w *bytes.Buffer, v uint64) error {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	_, err := w.Write(tmp[:n])
	return err
}

func writeString(w *bytes.Buffer, s string) error {
	if err := writeUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("codec: read string length: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("codec: read string body: %w", err)
	}
	return string(buf), nil
}

func writeBool(w *bytes.Buffer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	return w.WriteByte(v)
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("codec: read bool: %w", err)
	}
	return b != 0, nil
}
