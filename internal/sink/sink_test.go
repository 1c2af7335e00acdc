package sink_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rohmanhakim/webretriever/internal/metadata"
	"github.com/rohmanhakim/webretriever/internal/sink"
)

func newSink(t *testing.T, policy sink.Policy) *sink.LocalSink {
	t.Helper()
	return sink.NewLocalSink(metadata.NewRecorder(io.Discard), policy)
}

func TestWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	s := newSink(t, sink.Policy{Clobber: true})

	result, err := s.Write(sink.WriteRequest{
		LocalFilename: filepath.Join(dir, "page.html"),
		ContentType:   "text/html",
		Body:          strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.BytesWritten != 5 {
		t.Errorf("got %d bytes written", result.BytesWritten)
	}
	got, readErr := os.ReadFile(result.Path)
	if readErr != nil {
		t.Fatalf("ReadFile: %v", readErr)
	}
	if string(got) != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestWrite_SpiderModeRefuses(t *testing.T) {
	dir := t.TempDir()
	s := newSink(t, sink.Policy{Spider: true})

	_, err := s.Write(sink.WriteRequest{LocalFilename: filepath.Join(dir, "page.html"), Body: strings.NewReader("x")})
	if err == nil {
		t.Fatal("expected spider mode to refuse the write")
	}
}

func TestWrite_AllowedPolicyRefusesExcludedNames(t *testing.T) {
	dir := t.TempDir()
	s := newSink(t, sink.Policy{
		Clobber: true,
		Allowed: func(name string) bool { return strings.HasSuffix(name, ".html") },
	})

	_, err := s.Write(sink.WriteRequest{LocalFilename: filepath.Join(dir, "image.png"), Body: strings.NewReader("x")})
	if err == nil {
		t.Fatal("expected the filename-phase policy to refuse a non-matching name")
	}
}

func TestWrite_NoClobberDisambiguatesWithUniqueName(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "page.html")
	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newSink(t, sink.Policy{Clobber: false})
	result, err := s.Write(sink.WriteRequest{LocalFilename: target, Body: strings.NewReader("new")})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.Path == target {
		t.Fatal("expected a disambiguated path, not the original")
	}
	old, readErr := os.ReadFile(target)
	if readErr != nil || string(old) != "old" {
		t.Errorf("expected the original file untouched, got %q, err %v", old, readErr)
	}
}

func TestWrite_BackupsRotatesExisting(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "page.html")
	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newSink(t, sink.Policy{Clobber: true, Backups: 1})
	result, err := s.Write(sink.WriteRequest{LocalFilename: target, Body: strings.NewReader("new")})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.Path != target {
		t.Errorf("expected clobber+backups to keep writing at the original path, got %q", result.Path)
	}
	backup, readErr := os.ReadFile(target + ".1")
	if readErr != nil || string(backup) != "old" {
		t.Errorf("expected page.html.1 to hold the prior contents, got %q, err %v", backup, readErr)
	}
}

func TestWrite_AdjustExtensionAppendsMissingExtension(t *testing.T) {
	dir := t.TempDir()
	s := newSink(t, sink.Policy{Clobber: true, AdjustExtension: true})

	result, err := s.Write(sink.WriteRequest{
		LocalFilename: filepath.Join(dir, "page"),
		ContentType:   "text/html",
		Body:          strings.NewReader("x"),
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasSuffix(result.Path, "page.html") {
		t.Errorf("got %q", result.Path)
	}
}

func TestWrite_RangeContinuationWritesAtPositionRegardlessOfOrder(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "big.iso")
	s := newSink(t, sink.Policy{Clobber: true})

	// No part has written yet, so the second part of a 3-part Metalink
	// download both creates the file and lands before the first part:
	// with a positional write this still produces a correctly ordered
	// file; O_APPEND would have put part two's bytes at offset zero.
	if _, err := s.Write(sink.WriteRequest{
		LocalFilename: target,
		IsPartWrite:   true,
		AppendFrom:    10,
		Body:          strings.NewReader("bbbbbbbbbb"),
	}); err != nil {
		t.Fatalf("Write (part 2): %v", err)
	}
	if _, err := s.Write(sink.WriteRequest{
		LocalFilename: target,
		IsPartWrite:   true,
		AppendFrom:    0,
		Body:          strings.NewReader("aaaaaaaaaa"),
	}); err != nil {
		t.Fatalf("Write (part 1): %v", err)
	}
	if _, err := s.Write(sink.WriteRequest{
		LocalFilename: target,
		IsPartWrite:   true,
		AppendFrom:    20,
		Body:          strings.NewReader("cccccccccc"),
	}); err != nil {
		t.Fatalf("Write (part 3): %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "aaaaaaaaaabbbbbbbbbbcccccccccc"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrite_SpecialNameDiscardsWithoutTouchingDisk(t *testing.T) {
	s := newSink(t, sink.Policy{Clobber: true})

	result, err := s.Write(sink.WriteRequest{LocalFilename: os.DevNull, Body: strings.NewReader("discarded")})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.BytesWritten != 9 {
		t.Errorf("got %d bytes written", result.BytesWritten)
	}
}
