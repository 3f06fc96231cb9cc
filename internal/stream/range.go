package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRange = errors.New("invalid range")

// ByteRange is an inclusive byte span.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ParseRange parses a single "bytes=START-END" range against a file of size
// bytes. A missing START means 0 and a missing END means a window of at most
// window bytes from START. END is clamped to the last byte.
func ParseRange(header string, size, window int64) (ByteRange, error) {
	byteRange, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: unsupported unit in %q", ErrInvalidRange, header)
	}
	if strings.Contains(byteRange, ",") {
		return ByteRange{}, fmt.Errorf("%w: multiple ranges", ErrInvalidRange)
	}
	startRaw, endRaw, ok := strings.Cut(byteRange, "-")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: missing '-' in %q", ErrInvalidRange, header)
	}

	var r ByteRange
	if s := strings.TrimSpace(startRaw); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return ByteRange{}, fmt.Errorf("%w: bad start %q", ErrInvalidRange, s)
		}
		r.Start = v
	}
	if r.Start >= size {
		return ByteRange{}, fmt.Errorf("%w: start %d beyond size %d", ErrInvalidRange, r.Start, size)
	}

	if e := strings.TrimSpace(endRaw); e != "" {
		v, err := strconv.ParseInt(e, 10, 64)
		if err != nil || v < 0 {
			return ByteRange{}, fmt.Errorf("%w: bad end %q", ErrInvalidRange, e)
		}
		r.End = v
	} else {
		r.End = min(r.Start+window-1, size-1)
	}
	if r.End >= size {
		r.End = size - 1
	}
	if r.End < r.Start {
		return ByteRange{}, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, r.End, r.Start)
	}
	return r, nil
}
