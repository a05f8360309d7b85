package vector

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Snapshot layout: magic (4), version (2), dimension (4), entry count (4),
// payload CRC32 (4), then per entry: id, source, ordinal (4), text, vector
// (dimension*4 bytes). Strings are length-prefixed (4 bytes). All integers
// little-endian. The CRC covers the whole entry payload so a torn write is
// detected on load instead of producing silently wrong results.
var snapshotMagic = [4]byte{'D', 'Q', 'I', 'X'}

const snapshotVersion uint16 = 1

// SnapshotExists reports whether a snapshot file is present at path.
func SnapshotExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Save writes the full index to path, replacing any prior snapshot. The write
// goes to a temp file in the same directory and is renamed into place, so a
// crash mid-write never clobbers the previous snapshot.
func (x *Index) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("snapshot path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	var payload bytes.Buffer
	for i := range x.entries {
		e := &x.entries[i]
		writeString(&payload, e.Chunk.ID)
		writeString(&payload, e.Chunk.Source)
		_ = binary.Write(&payload, binary.LittleEndian, uint32(e.Chunk.Ordinal))
		writeString(&payload, e.Chunk.Text)
		payload.Write(float32SliceToBytes(e.Vector))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	header := make([]byte, 0, 18)
	header = append(header, snapshotMagic[:]...)
	header = binary.LittleEndian.AppendUint16(header, snapshotVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(x.dimensions))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(x.entries)))
	header = binary.LittleEndian.AppendUint32(header, crc32.ChecksumIEEE(payload.Bytes()))
	if _, err := tmp.Write(header); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if _, err := tmp.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("write snapshot payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot at path into a fresh index. Returns
// ErrSnapshotMissing when no snapshot exists and ErrSnapshotCorrupt (wrapped
// with the cause) when the file cannot be decoded, fails its checksum, or
// does not match wantDimensions.
func Load(path string, wantDimensions int) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) < 18 {
		return nil, fmt.Errorf("%w: truncated header", ErrSnapshotCorrupt)
	}
	if !bytes.Equal(data[:4], snapshotMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrSnapshotCorrupt)
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, version)
	}
	dim := int(binary.LittleEndian.Uint32(data[6:10]))
	count := int(binary.LittleEndian.Uint32(data[10:14]))
	sum := binary.LittleEndian.Uint32(data[14:18])
	if wantDimensions > 0 && dim != wantDimensions {
		return nil, fmt.Errorf("%w: dimension mismatch: snapshot has %d, expected %d", ErrSnapshotCorrupt, dim, wantDimensions)
	}
	payload := data[18:]
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrSnapshotCorrupt)
	}

	idx, err := NewIndex(dim)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrSnapshotCorrupt, dim)
	}
	r := bytes.NewReader(payload)
	vecBuf := make([]byte, dim*4)
	idx.entries = make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		var e Entry
		if e.Chunk.ID, err = readString(r); err != nil {
			return nil, fmt.Errorf("%w: entry %d id: %v", ErrSnapshotCorrupt, i, err)
		}
		if e.Chunk.Source, err = readString(r); err != nil {
			return nil, fmt.Errorf("%w: entry %d source: %v", ErrSnapshotCorrupt, i, err)
		}
		var ordinal uint32
		if err = binary.Read(r, binary.LittleEndian, &ordinal); err != nil {
			return nil, fmt.Errorf("%w: entry %d ordinal: %v", ErrSnapshotCorrupt, i, err)
		}
		e.Chunk.Ordinal = int(ordinal)
		if e.Chunk.Text, err = readString(r); err != nil {
			return nil, fmt.Errorf("%w: entry %d text: %v", ErrSnapshotCorrupt, i, err)
		}
		if _, err = io.ReadFull(r, vecBuf); err != nil {
			return nil, fmt.Errorf("%w: entry %d vector: %v", ErrSnapshotCorrupt, i, err)
		}
		e.Vector = bytesToFloat32Slice(vecBuf)
		idx.entries = append(idx.entries, e)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSnapshotCorrupt, r.Len())
	}
	return idx, nil
}

// LoadOrNew loads the snapshot at path, or returns a fresh empty index when
// no snapshot exists yet. Corruption still fails.
func LoadOrNew(path string, dimensions int) (*Index, error) {
	idx, err := Load(path, dimensions)
	if errors.Is(err, ErrSnapshotMissing) {
		return NewIndex(dimensions)
	}
	return idx, err
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", fmt.Errorf("string length %d exceeds remaining %d", n, r.Len())
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
