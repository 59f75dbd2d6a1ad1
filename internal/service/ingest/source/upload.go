package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// Spooler copies uploaded content to temporary files so payloads outlive the request.
type Spooler struct {
	dir string
}

// NewSpooler creates the spool directory if needed.
func NewSpooler(dir string) (*Spooler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Spooler{dir: dir}, nil
}

// Spool writes r to a new temp file and sniffs its content type.
func (s *Spooler) Spool(r io.Reader) (*SpooledFile, error) {
	f, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("spool upload: %w", err)
	}

	sf := &SpooledFile{Path: f.Name(), Size: size}
	if mt, err := mimetype.DetectFile(sf.Path); err == nil {
		sf.ContentType = mt.String()
	}
	return sf, nil
}

// SpooledFile is a payload whose temp file is removed on release.
type SpooledFile struct {
	Path        string
	Size        int64
	ContentType string
}

func (f *SpooledFile) Open() (io.ReadCloser, error) { return os.Open(f.Path) }

func (f *SpooledFile) Release() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// UploadedFile pairs a client-supplied relative path with its spooled content.
type UploadedFile struct {
	RelPath string
	File    *SpooledFile
}

// UploadTree is a virtual directory tree rebuilt from relative upload paths.
// "Shots/Day1/a.png" yields folders Shots and Day1 around file a.png.
type UploadTree struct {
	roots []ingestSvc.Entry
	files []*uploadFile
}

// NewUploadTree builds the tree. Paths must be relative and may not climb with "..".
// Entries keep the order in which their path was first seen.
func NewUploadTree(files []UploadedFile) (*UploadTree, error) {
	tree := &UploadTree{}
	dirs := make(map[string]*uploadDir)

	for _, uf := range files {
		rel, err := cleanRelPath(uf.RelPath)
		if err != nil {
			return nil, err
		}
		segments := strings.Split(rel, "/")

		var parent *uploadDir
		for i, seg := range segments[:len(segments)-1] {
			dirPath := strings.Join(segments[:i+1], "/")
			dir, ok := dirs[dirPath]
			if !ok {
				dir = &uploadDir{name: seg, path: dirPath}
				dirs[dirPath] = dir
				tree.attach(parent, dir)
			}
			parent = dir
		}

		file := &uploadFile{name: segments[len(segments)-1], path: rel, file: uf.File}
		tree.files = append(tree.files, file)
		tree.attach(parent, file)
	}
	return tree, nil
}

func (t *UploadTree) attach(parent *uploadDir, e ingestSvc.Entry) {
	if parent == nil {
		t.roots = append(t.roots, e)
		return
	}
	parent.children = append(parent.children, e)
}

// Entries returns the top-level entries.
func (t *UploadTree) Entries() []ingestSvc.Entry {
	return t.roots
}

// ReleaseUnclaimed removes spooled files whose payload was never handed out,
// such as files the scanner skipped.
func (t *UploadTree) ReleaseUnclaimed() error {
	var errs []error
	for _, f := range t.files {
		if !f.claim() {
			continue
		}
		if err := f.file.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func cleanRelPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", &domain.ValidationError{Message: fmt.Sprintf("invalid upload path %q", p)}
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &domain.ValidationError{Message: fmt.Sprintf("invalid upload path %q", p)}
	}
	return clean, nil
}

type uploadDir struct {
	name     string
	path     string
	children []ingestSvc.Entry
}

func (d *uploadDir) Name() string        { return d.name }
func (d *uploadDir) Path() string        { return d.path }
func (d *uploadDir) IsDir() bool         { return true }
func (d *uploadDir) Size() int64         { return 0 }
func (d *uploadDir) ContentType() string { return "" }

func (d *uploadDir) List(ctx context.Context) ([]ingestSvc.Entry, error) {
	return d.children, nil
}

func (d *uploadDir) Payload() (models.Payload, error) {
	return nil, fmt.Errorf("%s is a directory", d.path)
}

type uploadFile struct {
	name string
	path string
	file *SpooledFile

	mu      sync.Mutex
	claimed bool
}

func (f *uploadFile) Name() string        { return f.name }
func (f *uploadFile) Path() string        { return f.path }
func (f *uploadFile) IsDir() bool         { return false }
func (f *uploadFile) Size() int64         { return f.file.Size }
func (f *uploadFile) ContentType() string { return f.file.ContentType }

func (f *uploadFile) List(ctx context.Context) ([]ingestSvc.Entry, error) {
	return nil, fmt.Errorf("%s is not a directory", f.path)
}

// Payload hands the spooled file over. It can be claimed once.
func (f *uploadFile) Payload() (models.Payload, error) {
	if !f.claim() {
		return nil, fmt.Errorf("payload of %s already claimed", f.path)
	}
	return f.file, nil
}

// claim marks the file as handed out and reports whether this call did it.
func (f *uploadFile) claim() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed {
		return false
	}
	f.claimed = true
	return true
}
