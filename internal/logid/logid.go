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

// Package logid identifies a logfile on disk and detects whether it has
// been rotated since the last time it was scanned.
package logid

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cespare/xxhash/v2"
)

// Compression names the decompression scheme a logfile requires.
type Compression int

const (
	Uncompressed Compression = iota
	Gzip
	Bzip2
	Xz
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Xz:
		return "xz"
	default:
		return "uncompressed"
	}
}

// compressionFromExtension maps a file extension to a Compression scheme.
func compressionFromExtension(ext string) Compression {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "gz", "gzip":
		return Gzip
	case "bz2", "bzip2":
		return Bzip2
	case "xz":
		return Xz
	default:
		return Uncompressed
	}
}

// ErrFileSizeLessThanHashWindow is returned when a file is too small to
// compute a signature hash over the configured hash window.
var ErrFileSizeLessThanHashWindow = errors.New("file size is less than hash window")

// Signature uniquely identifies a logfile's underlying inode across runs.
type Signature struct {
	Inode uint64 `json:"inode"`
	Dev   uint64 `json:"dev"`
	// Hash is a content digest over the first HashWindow bytes of the file,
	// computed only when the file is at least that large.
	Hash *uint64 `json:"hash,omitempty"`
}

// LogFileID is the set of attributes derived from a declared path: where it
// actually resolves to, what it's named, and which underlying file it is.
type LogFileID struct {
	DeclaredPath string      `json:"declared_path"`
	CanonPath    string      `json:"canon_path"`
	Directory    string      `json:"directory"`
	Extension    string      `json:"extension"`
	Compression  Compression `json:"compression"`
	Signature    Signature   `json:"signature"`
}

// Identify builds a LogFileID from a declared path, computing the signature
// hash over the first hashWindow bytes. hashWindow of 0 disables hashing.
func Identify(declaredPath string, hashWindow int64) (*LogFileID, error) {
	id := &LogFileID{}
	if err := id.Update(declaredPath, hashWindow); err != nil {
		return nil, err
	}
	return id, nil
}

// Update refreshes every derived field from the current state of the path
// on disk. Used both for the initial identification and, after a rotation
// is suspected, to re-derive identity against the file now at this path.
func (id *LogFileID) Update(declaredPath string, hashWindow int64) error {
	id.DeclaredPath = declaredPath

	canon, err := filepath.Abs(declaredPath)
	if err != nil {
		return fmt.Errorf("unable to resolve path %q: %w", declaredPath, err)
	}
	canon, err = filepath.EvalSymlinks(canon)
	if err != nil {
		return fmt.Errorf("unable to canonicalize file %q: %w", declaredPath, err)
	}

	id.CanonPath = canon
	id.Directory = filepath.Dir(canon)
	id.Extension = strings.TrimPrefix(filepath.Ext(canon), ".")
	id.Compression = compressionFromExtension(id.Extension)

	sig, err := signatureOf(canon, hashWindow)
	if err != nil {
		return err
	}
	id.Signature = sig

	return nil
}

// signatureOf stats the file for its device/inode pair and, if it's large
// enough, hashes its first hashWindow bytes with xxhash.
func signatureOf(path string, hashWindow int64) (Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signature{}, fmt.Errorf("unable to open %q: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Signature{}, fmt.Errorf("unable to stat %q: %w", path, err)
	}

	sig := Signature{}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		sig.Inode = st.Ino
		sig.Dev = uint64(st.Dev)
	}

	if hashWindow <= 0 {
		return sig, nil
	}
	if fi.Size() < hashWindow {
		return sig, nil
	}

	buf := make([]byte, hashWindow)
	if _, err := io.ReadFull(f, buf); err != nil {
		return Signature{}, fmt.Errorf("unable to read hash window for %q: %w", path, err)
	}
	h := xxhash.Sum64(buf)
	sig.Hash = &h

	return sig, nil
}

// HasRotated compares an old and new signature for the same declared path
// and decides whether the underlying file has been rotated: a new inode
// (or device) means the old content is gone and a fresh file has taken its
// place. If either hash is missing, rotation can't be decided from
// content alone and ErrFileSizeLessThanHashWindow is returned when the
// device and inode are otherwise unchanged.
func HasRotated(old, new Signature) (bool, error) {
	if old.Dev != new.Dev {
		return true, nil
	}
	if old.Inode != new.Inode {
		return true, nil
	}
	if old.Hash == nil || new.Hash == nil {
		return false, ErrFileSizeLessThanHashWindow
	}
	return *old.Hash != *new.Hash, nil
}
