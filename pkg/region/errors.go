package region

import "errors"

var (
	// ErrIO wraps operating system failures opening, statting, or
	// reading a region file, including short reads of fixed structures.
	ErrIO = errors.New("region i/o error")

	// ErrFormat indicates bad magic, an unsupported version, or
	// implausible header fields.
	ErrFormat = errors.New("invalid region file format")

	// ErrTruncated indicates a declared extent past the end of the
	// file, such as a blob index table or blob body the file cannot
	// hold.
	ErrTruncated = errors.New("truncated region file")

	// ErrDecompression indicates a corrupt blob stream or a
	// decompressed size that does not match the declared source length.
	ErrDecompression = errors.New("blob decompression failed")

	// ErrSlotRange indicates a slot outside [0, blobCount).
	ErrSlotRange = errors.New("slot outside region index")

	// ErrSlotEmpty indicates a slot whose blob index entry is zero.
	ErrSlotEmpty = errors.New("slot holds no chunk")

	// ErrReaderClosed indicates use of a reader after Close.
	ErrReaderClosed = errors.New("region reader is closed")
)
