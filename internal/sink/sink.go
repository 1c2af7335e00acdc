// Package sink implements the engine's file sink (§4.8): conflict
// resolution, range append, backup-on-overwrite, timestamp preservation,
// and xattr write.
package sink

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rohmanhakim/webretriever/internal/metadata"
	"github.com/rohmanhakim/webretriever/pkg/failure"
	"github.com/rohmanhakim/webretriever/pkg/fileutil"
)

// Policy carries the per-run sink configuration (§4.8 step 1-3).
type Policy struct {
	Spider          bool // --spider: never touch the filesystem
	Clobber         bool
	Backups         int
	Timestamping    bool
	AdjustExtension bool
	Naming          NamingOptions
	Fsync           bool
	QuotaExceeded   func() bool
	Allowed         func(filename string) bool // accept/reject patterns, filename phase
}

// WriteRequest is everything the sink needs to place one response body on
// disk (§4.8, §2 item 9).
type WriteRequest struct {
	OutputDir      string
	LocalFilename  string // caller-resolved path (e.g. sink.LocalPath), pre-extension-adjustment
	ContentType    string
	Charset        string
	OriginURL      string
	RefererURL     string
	LastModified   time.Time
	IfModifiedSent bool // true if the request carried If-Modified-Since
	Body           io.Reader
	IsPartWrite    bool  // true for a Metalink part's Range-continuation write (§4.8 step 5)
	AppendFrom     int64 // byte offset to write at when IsPartWrite is set; a part may legitimately start at 0
}

// WriteResult reports what actually happened on disk.
type WriteResult struct {
	Path         string
	BytesWritten int64
	NotModified  bool // true when timestamping determined the remote is unchanged
}

// Sink is the engine's collaborator interface for persisting a fetched
// response.
type Sink interface {
	Write(req WriteRequest) (WriteResult, failure.ClassifiedError)
}

// LocalSink is the default filesystem-backed Sink.
type LocalSink struct {
	metadataSink metadata.MetadataSink
	policy       Policy
}

// NewLocalSink builds a LocalSink bound to policy and wired to sink for
// observability (every refusal and every written artifact is recorded).
func NewLocalSink(metadataSink metadata.MetadataSink, policy Policy) *LocalSink {
	return &LocalSink{metadataSink: metadataSink, policy: policy}
}

func (s *LocalSink) Write(req WriteRequest) (WriteResult, failure.ClassifiedError) {
	result, err := s.write(req)
	if err != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"sink",
			"LocalSink.Write",
			mapSinkErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, req.OriginURL),
				metadata.NewAttr(metadata.AttrWritePath, err.Path),
			},
		)
		return WriteResult{}, err
	}
	kind := metadata.ArtifactAsset
	switch req.ContentType {
	case "text/html", "application/xhtml+xml":
		kind = metadata.ArtifactHTML
	case "application/metalink+xml":
		kind = metadata.ArtifactMetalink
	}
	if !result.NotModified {
		s.metadataSink.RecordArtifact(kind, result.Path, []metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, result.Path),
			metadata.NewAttr(metadata.AttrURL, req.OriginURL),
		})
	}
	return result, nil
}

func (s *LocalSink) write(req WriteRequest) (WriteResult, *SinkError) {
	// Special names bypass the filesystem (§4.8 "Special names"): "-"
	// copies the body to stdout, the null device names discard it.
	if fileutil.IsSinkSpecialName(req.LocalFilename) {
		var dst io.Writer = io.Discard
		if req.LocalFilename == "-" {
			dst = os.Stdout
		}
		n, err := io.Copy(dst, req.Body)
		if err != nil {
			return WriteResult{}, &SinkError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure, Path: req.LocalFilename}
		}
		return WriteResult{Path: req.LocalFilename, BytesWritten: n}, nil
	}

	// Step 1: refuse conditions.
	if s.policy.Spider {
		return WriteResult{}, &SinkError{Message: "spider mode: not saving", Retryable: false, Cause: ErrCauseRefused, Path: req.LocalFilename}
	}
	if s.policy.QuotaExceeded != nil && s.policy.QuotaExceeded() {
		return WriteResult{}, &SinkError{Message: "quota exceeded", Retryable: false, Cause: ErrCauseRefused, Path: req.LocalFilename}
	}
	if s.policy.Allowed != nil && !s.policy.Allowed(req.LocalFilename) {
		return WriteResult{}, &SinkError{Message: "excluded by accept/reject pattern", Retryable: false, Cause: ErrCauseRefused, Path: req.LocalFilename}
	}

	targetPath := req.LocalFilename
	if s.policy.AdjustExtension {
		targetPath = AdjustExtension(targetPath, req.ContentType)
	}

	if err := fileutil.EnsureDir(filepath.Dir(targetPath)); err != nil {
		return WriteResult{}, &SinkError{Message: err.Error(), Retryable: false, Cause: ErrCausePathError, Path: targetPath}
	}

	// A Metalink part write targets its own byte range of the shared
	// target file regardless of whether any other part has created it
	// yet — it never competes with the clobber/backup/unique-name
	// conflict resolution below, which exists for whole-document writes.
	if req.IsPartWrite {
		return s.writeRangeContinuation(targetPath, req)
	}

	if info, statErr := os.Stat(targetPath); statErr == nil {
		if info.IsDir() {
			return WriteResult{}, &SinkError{Message: "target is a directory", Retryable: false, Cause: ErrCauseRefused, Path: targetPath}
		}
		// Step 3: timestamping — the request already carried
		// If-Modified-Since and the server is expected to answer 304;
		// this branch only covers the case the caller still hands us a
		// body to compare mtimes against.
		if s.policy.Timestamping && !req.LastModified.IsZero() && !req.LastModified.After(info.ModTime()) {
			return WriteResult{Path: targetPath, NotModified: true}, nil
		}

		if !s.policy.Clobber {
			if s.policy.Backups > 0 {
				if err := fileutil.RotateBackups(targetPath, s.policy.Backups); err != nil {
					return WriteResult{}, &SinkError{Message: err.Error(), Retryable: false, Cause: ErrCauseWriteFailure, Path: targetPath}
				}
			} else {
				unique, err := fileutil.UniqueName(targetPath)
				if err != nil {
					return WriteResult{}, &SinkError{Message: err.Error(), Retryable: false, Cause: ErrCauseAlreadyExists, Path: targetPath}
				}
				targetPath = unique
			}
		} else if s.policy.Backups > 0 {
			if err := fileutil.RotateBackups(targetPath, s.policy.Backups); err != nil {
				return WriteResult{}, &SinkError{Message: err.Error(), Retryable: false, Cause: ErrCauseWriteFailure, Path: targetPath}
			}
		}
	}

	return s.writeFresh(targetPath, req)
}

func (s *LocalSink) writeFresh(path string, req WriteRequest) (WriteResult, *SinkError) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		if os.IsExist(err) {
			unique, uerr := fileutil.UniqueName(path)
			if uerr != nil {
				return WriteResult{}, &SinkError{Message: uerr.Error(), Retryable: false, Cause: ErrCauseAlreadyExists, Path: path}
			}
			path = unique
			f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		}
		if err != nil {
			return WriteResult{}, &SinkError{Message: err.Error(), Retryable: false, Cause: ErrCausePathError, Path: path}
		}
	}
	defer f.Close()

	n, copyErr := io.Copy(f, req.Body)
	if copyErr != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(copyErr, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return WriteResult{}, &SinkError{Message: copyErr.Error(), Retryable: retryable, Cause: cause, Path: path}
	}

	if s.policy.Fsync {
		_ = f.Sync()
	}

	s.finalize(path, req)

	return WriteResult{Path: path, BytesWritten: n}, nil
}

// writeRangeContinuation implements §4.8 step 5: write req.Body at its
// exact byte position (req.AppendFrom) rather than trusting O_APPEND's
// end-of-file offset. Concurrent Metalink parts of the same job complete
// in whatever order the network delivers them (§4.4's frontier hands out
// every still-open part to any free worker); only a positional write
// places each part's bytes correctly regardless of completion order, a
// plain append would corrupt the file the moment two parts land out of
// sequence.
func (s *LocalSink) writeRangeContinuation(path string, req WriteRequest) (WriteResult, *SinkError) {
	// The first part to complete creates the file; later parts (in any
	// order) reopen the same file and write into their own byte range,
	// so a missing file here is the expected common case, not an error.
	var existingSize int64
	if info, statErr := os.Stat(path); statErr == nil {
		existingSize = info.Size()
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return WriteResult{}, &SinkError{Message: err.Error(), Retryable: false, Cause: ErrCausePathError, Path: path}
	}
	defer f.Close()

	n, copyErr := io.Copy(&offsetWriter{f: f, offset: req.AppendFrom}, req.Body)
	if copyErr != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(copyErr, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return WriteResult{}, &SinkError{Message: copyErr.Error(), Retryable: retryable, Cause: cause, Path: path}
	}

	if s.policy.Fsync {
		_ = f.Sync()
	}

	s.finalize(path, req)

	total := req.AppendFrom + n
	if existingSize > total {
		total = existingSize
	}
	return WriteResult{Path: path, BytesWritten: total}, nil
}

// offsetWriter adapts *os.File.WriteAt into an io.Writer that advances
// sequentially from a starting offset, so io.Copy can stream a part's
// body straight to its byte position without first reading the file's
// existing contents into memory.
type offsetWriter struct {
	f      *os.File
	offset int64
}

func (w *offsetWriter) Write(p []byte) (int, error) {
	n, err := w.f.WriteAt(p, w.offset)
	w.offset += int64(n)
	return n, err
}

// finalize applies §4.8 step 6: xattr write and mtime preservation. Errors
// are intentionally swallowed beyond a metadata record — xattr support
// varies by filesystem and must not fail an otherwise-successful download.
func (s *LocalSink) finalize(path string, req WriteRequest) {
	if err := fileutil.WriteOriginXattrs(path, fileutil.OriginMetadata{
		OriginURL:  req.OriginURL,
		RefererURL: req.RefererURL,
		MimeType:   req.ContentType,
		Charset:    req.Charset,
	}); err != nil {
		s.metadataSink.RecordError(time.Now(), "sink", "finalize", metadata.CauseStorageFailure, err.Error(), []metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, path),
		})
	}

	if !req.LastModified.IsZero() {
		_ = os.Chtimes(path, req.LastModified, req.LastModified)
	}
}
