//
// Copyright (C) 2022 IBM Corporation.
//
// Authors:
// Frederico Araujo <frederico.araujo@ibm.com>
// Teryl Taylor <terylt@ibm.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package streamio provides a uniform, forward-only byte-line reader over
// plain, gzip, bzip2, and xz compressed logfiles.
package streamio

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"io"

	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/clfcheck/check-logfiles/internal/logid"
)

// ErrSeekPosBeyondEOF is returned by SetOffset when asked to advance past
// the end of the underlying stream.
var ErrSeekPosBeyondEOF = errors.New("seek position beyond end of file")

// LineReader reads a logfile line by line regardless of its compression,
// and supports forward-only repositioning to a previously recorded offset.
type LineReader interface {
	// ReadLine returns the next line, including its trailing newline
	// terminator if present; len(line) is the number of bytes consumed from
	// the underlying stream to produce it. Returns io.EOF when there is
	// nothing left to read.
	ReadLine() (line []byte, err error)

	// SetOffset advances the reader to byte offset n from the start of the
	// uncompressed stream. n of 0 is a no-op. Calling SetOffset a second
	// time with a smaller n than already consumed is not supported; this
	// reader is forward-only. Returns ErrSeekPosBeyondEOF if n lies beyond
	// the end of the stream.
	SetOffset(n int64) error

	// Close releases any underlying file handle.
	Close() error
}

// Open returns a LineReader appropriate for the given compression scheme,
// reading path through fs.
func Open(fs afero.Fs, path string, compression logid.Compression) (LineReader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	switch compression {
	case logid.Gzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &discardSeekReader{closer: f, r: bufio.NewReader(gz)}, nil
	case logid.Bzip2:
		return &discardSeekReader{closer: f, r: bufio.NewReader(bzip2.NewReader(f))}, nil
	case logid.Xz:
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &discardSeekReader{closer: f, r: bufio.NewReader(xr)}, nil
	default:
		return &nativeSeekReader{f: f, r: bufio.NewReader(f)}, nil
	}
}

// nativeSeekReader backs an uncompressed file, where SetOffset can use a
// real filesystem seek instead of reading-and-discarding.
type nativeSeekReader struct {
	f afero.File
	r *bufio.Reader
}

func (n *nativeSeekReader) ReadLine() ([]byte, error) {
	return readLine(n.r)
}

func (n *nativeSeekReader) SetOffset(offset int64) error {
	if offset == 0 {
		return nil
	}
	fi, err := n.f.Stat()
	if err != nil {
		return err
	}
	if offset > fi.Size() {
		return ErrSeekPosBeyondEOF
	}
	if _, err := n.f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	n.r.Reset(n.f)
	return nil
}

func (n *nativeSeekReader) Close() error {
	return n.f.Close()
}

// discardSeekReader backs a compressed stream, where repositioning can
// only be done by reading and discarding bytes since compressed streams
// don't support random access.
type discardSeekReader struct {
	closer io.Closer
	r      *bufio.Reader
}

func (d *discardSeekReader) ReadLine() ([]byte, error) {
	return readLine(d.r)
}

func (d *discardSeekReader) SetOffset(offset int64) error {
	if offset == 0 {
		return nil
	}
	discarded, err := io.CopyN(io.Discard, d.r, offset)
	if err != nil {
		if errors.Is(err, io.EOF) && discarded < offset {
			return ErrSeekPosBeyondEOF
		}
		return err
	}
	return nil
}

func (d *discardSeekReader) Close() error {
	return d.closer.Close()
}

// readLine reads up to and including the next newline, returning whatever
// bytes were read even if the stream ends without one.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		return nil, err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return line, nil
}
