package region

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/meintsot/regionlens/pkg/common/log"
)

// Reader reads one region file. The header and blob index are loaded at
// open time; blob bodies are read on demand with positioned reads.
type Reader struct {
	path     string
	file     *os.File
	fileSize int64

	header Header
	index  []uint32

	maxSourceSize uint32
	logger        log.Logger

	mu sync.RWMutex
}

// Option configures a Reader at construction.
type Option func(*Reader)

// WithMaxSourceSize overrides the sanity cap on a blob's declared
// decompressed size.
func WithMaxSourceSize(n uint32) Option {
	return func(r *Reader) {
		r.maxSourceSize = n
	}
}

// WithLogger sets the logger used for open/close diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// Open opens a region file, validates its header, and loads the blob
// index. No blob body is read.
func Open(path string, options ...Option) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	r := &Reader{
		path:          path,
		file:          file,
		fileSize:      stat.Size(),
		maxSourceSize: DefaultMaxSourceSize,
		logger:        log.GetDefaultLogger(),
	}
	for _, option := range options {
		option(r)
	}

	if err := r.readHeader(); err != nil {
		file.Close()
		return nil, err
	}
	if err := r.readIndex(); err != nil {
		file.Close()
		return nil, err
	}

	r.logger.Debug("opened region file %s: version=%d blobCount=%d segmentSize=%d occupied=%d",
		path, r.header.Version, r.header.BlobCount, r.header.SegmentSize, r.occupiedCount())
	return r, nil
}

func (r *Reader) readHeader() error {
	buf := make([]byte, HeaderSize)
	n, _ := r.file.ReadAt(buf, 0)
	if n < HeaderSize {
		return fmt.Errorf("%w: short read: region header needs %d bytes, file %s has %d",
			ErrIO, HeaderSize, r.path, r.fileSize)
	}

	if string(buf[:len(Magic)]) != Magic {
		return fmt.Errorf("%w: %s does not start with the region magic", ErrFormat, r.path)
	}

	r.header = Header{
		Version:     binary.BigEndian.Uint32(buf[20:24]),
		BlobCount:   binary.BigEndian.Uint32(buf[24:28]),
		SegmentSize: binary.BigEndian.Uint32(buf[28:32]),
	}

	if r.header.Version != SupportedVersion {
		return fmt.Errorf("%w: unsupported version %d in %s", ErrFormat, r.header.Version, r.path)
	}
	if r.header.BlobCount == 0 || r.header.BlobCount > maxBlobCount {
		return fmt.Errorf("%w: implausible blob count %d in %s", ErrFormat, r.header.BlobCount, r.path)
	}
	if r.header.SegmentSize == 0 {
		return fmt.Errorf("%w: zero segment size in %s", ErrFormat, r.path)
	}
	return nil
}

func (r *Reader) readIndex() error {
	indexBytes := int64(r.header.BlobCount) * 4
	if HeaderSize+indexBytes > r.fileSize {
		return fmt.Errorf("%w: blob index declares %d bytes at offset %d, file %s holds %d",
			ErrTruncated, indexBytes, HeaderSize, r.path, r.fileSize)
	}

	buf := make([]byte, indexBytes)
	if _, err := r.file.ReadAt(buf, HeaderSize); err != nil {
		return fmt.Errorf("%w: reading blob index of %s: %w", ErrIO, r.path, err)
	}

	r.index = make([]uint32, r.header.BlobCount)
	for i := range r.index {
		r.index[i] = binary.BigEndian.Uint32(buf[i*4:])
	}
	return nil
}

// Header returns the decoded header fields.
func (r *Reader) Header() Header {
	return r.header
}

// Path returns the file path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// FileSize returns the region file's size in bytes.
func (r *Reader) FileSize() int64 {
	return r.fileSize
}

// Locate resolves a slot to the byte offset of its blob. ok is false
// iff the slot holds no chunk. The offset is not validated against the
// file length; that is deferred to ReadRawBlob.
func (r *Reader) Locate(slot int) (offset int64, ok bool, err error) {
	if slot < 0 || slot >= len(r.index) {
		return 0, false, fmt.Errorf("%w: slot %d, index holds %d", ErrSlotRange, slot, len(r.index))
	}
	seg := r.index[slot]
	if seg == 0 {
		return 0, false, nil
	}
	offset = int64(HeaderSize) + int64(len(r.index))*4 + (int64(seg)-1)*int64(r.header.SegmentSize)
	return offset, true, nil
}

// ReadRawBlob reads the blob stored at the given offset: the declared
// source length, the compressed length, and exactly that many bytes.
func (r *Reader) ReadRawBlob(offset int64) (*RawBlob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.file == nil {
		return nil, ErrReaderClosed
	}

	if offset < 0 || offset+8 > r.fileSize {
		return nil, fmt.Errorf("%w: blob header at offset %d, file %s holds %d bytes",
			ErrTruncated, offset, r.path, r.fileSize)
	}

	prefix := make([]byte, 8)
	if _, err := r.file.ReadAt(prefix, offset); err != nil {
		return nil, fmt.Errorf("%w: reading blob header at offset %d: %w", ErrIO, offset, err)
	}
	srcLength := binary.BigEndian.Uint32(prefix[0:4])
	compressedLength := binary.BigEndian.Uint32(prefix[4:8])

	if compressedLength == 0 {
		return nil, fmt.Errorf("%w: zero-length blob at offset %d in %s", ErrFormat, offset, r.path)
	}
	if srcLength > r.maxSourceSize {
		return nil, fmt.Errorf("%w: blob at offset %d declares %d decompressed bytes, cap is %d",
			ErrFormat, offset, srcLength, r.maxSourceSize)
	}
	if offset+8+int64(compressedLength) > r.fileSize {
		return nil, fmt.Errorf("%w: blob at offset %d declares %d compressed bytes, file %s holds %d",
			ErrTruncated, offset, compressedLength, r.path, r.fileSize)
	}

	compressed := make([]byte, compressedLength)
	if _, err := r.file.ReadAt(compressed, offset+8); err != nil {
		return nil, fmt.Errorf("%w: reading blob body at offset %d: %w", ErrIO, offset+8, err)
	}

	return &RawBlob{SrcLength: srcLength, Compressed: compressed}, nil
}

// ReadSlot locates a slot and reads its blob in one step.
func (r *Reader) ReadSlot(slot int) (*RawBlob, error) {
	offset, ok, err := r.Locate(slot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: slot %d in %s", ErrSlotEmpty, slot, r.path)
	}
	return r.ReadRawBlob(offset)
}

// Occupied returns the ascending slot numbers with non-zero index
// entries.
func (r *Reader) Occupied() []int {
	slots := make([]int, 0, r.occupiedCount())
	for slot, seg := range r.index {
		if seg != 0 {
			slots = append(slots, slot)
		}
	}
	return slots
}

func (r *Reader) occupiedCount() int {
	n := 0
	for _, seg := range r.index {
		if seg != 0 {
			n++
		}
	}
	return n
}

// Stat summarizes the open file.
func (r *Reader) Stat() Stat {
	return Stat{
		Path:     r.path,
		FileSize: r.fileSize,
		Header:   r.header,
		Occupied: r.occupiedCount(),
	}
}

// Close closes the underlying file. Close is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
