package storage

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"

	"github.com/nodeforge/heartwood/crypto"
)

// ReadRepository is the read side of the storage contract the core needs
// from git (spec.md §4.E "Storage contract"): resolve refs, read blobs at a
// commit, and read a commit's metadata.
type ReadRepository interface {
	ReferenceOid(name plumbing.ReferenceName) (Oid, error)
	BlobAt(commit Oid, path string) ([]byte, error)
	Commit(oid Oid) (*CommitInfo, error)
	HasObject(oid Oid) bool
}

// WriteRepository is the write side: write a single-file tree and create a
// signed commit on a ref.
type WriteRepository interface {
	ReadRepository
	WriteTree(path string, data []byte) (Oid, error)
	CreateCommit(ref plumbing.ReferenceName, tree Oid, parents []Oid, author Identity, message string) (Oid, error)
	SetReference(name plumbing.ReferenceName, target Oid) error
}

// Identity is the author/committer identity recorded on a commit. The
// repository's own commits always use the deterministic "radicle"/<peer>
// identity described in spec.md §4.D.
type Identity struct {
	Name  string
	Email string
	When  time.Time
}

// CommitInfo is the subset of a git commit the core reads: its message (for
// trailer parsing) and tree.
type CommitInfo struct {
	Oid     Oid
	Tree    Oid
	Parents []Oid
	Message string
}

// Repository wraps a go-git repository and implements ReadRepository and
// WriteRepository.
type Repository struct {
	backend *git.Repository
	log     logrus.FieldLogger
}

// Open opens an existing repository at path.
func Open(path string, log logrus.FieldLogger) (*Repository, error) {
	backend, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &Repository{backend: backend, log: log}, nil
}

// Init creates a new bare repository at path.
func Init(path string, log logrus.FieldLogger) (*Repository, error) {
	backend, err := git.PlainInit(path, true)
	if err != nil {
		return nil, fmt.Errorf("storage: init %s: %w", path, err)
	}
	return &Repository{backend: backend, log: log}, nil
}

// FromBackend wraps an already-open go-git repository, e.g. one backed by
// an in-memory storer in tests.
func FromBackend(backend *git.Repository, log logrus.FieldLogger) *Repository {
	return &Repository{backend: backend, log: log}
}

// ReferenceOid resolves name to the oid it currently points at.
func (r *Repository) ReferenceOid(name plumbing.ReferenceName) (Oid, error) {
	ref, err := r.backend.Reference(name, true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return Oid{}, notFound(string(name))
		}
		return Oid{}, fmt.Errorf("storage: resolve %s: %w", name, err)
	}
	return OidFromHash(ref.Hash()), nil
}

// SetReference atomically updates (or creates) a ref to point at target.
func (r *Repository) SetReference(name plumbing.ReferenceName, target Oid) error {
	ref := plumbing.NewHashReference(name, target.Hash())
	if err := r.backend.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("storage: set ref %s: %w", name, err)
	}
	return nil
}

// HasObject reports whether oid resolves to a known object.
func (r *Repository) HasObject(oid Oid) bool {
	_, err := r.backend.Storer.EncodedObject(plumbing.AnyObject, oid.Hash())
	return err == nil
}

// Commit reads a commit's metadata.
func (r *Repository) Commit(oid Oid) (*CommitInfo, error) {
	c, err := object.GetCommit(r.backend.Storer, oid.Hash())
	if err != nil {
		if err == plumbing.ErrObjectNotFound {
			return nil, notFound(oid.String())
		}
		return nil, fmt.Errorf("storage: read commit %s: %w", oid, err)
	}
	parents := make([]Oid, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, OidFromHash(p))
	}
	return &CommitInfo{
		Oid:     oid,
		Tree:    OidFromHash(c.TreeHash),
		Parents: parents,
		Message: c.Message,
	}, nil
}

// BlobAt reads the content of the blob at path within the tree of commit.
func (r *Repository) BlobAt(commit Oid, path string) ([]byte, error) {
	c, err := object.GetCommit(r.backend.Storer, commit.Hash())
	if err != nil {
		if err == plumbing.ErrObjectNotFound {
			return nil, notFound(commit.String())
		}
		return nil, fmt.Errorf("storage: read commit %s: %w", commit, err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("storage: read tree for commit %s: %w", commit, err)
	}
	file, err := tree.File(path)
	if err != nil {
		if err == object.ErrFileNotFound {
			return nil, notFound(path)
		}
		return nil, fmt.Errorf("storage: read file %s: %w", path, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("storage: open blob reader for %s: %w", path, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("storage: read blob %s: %w", path, err)
	}
	return data, nil
}

// WriteTree writes data as the sole blob in a single-file tree at path,
// returning the tree's oid. Identity documents and other single-file
// artifacts are stored this way (spec.md §4.D Init/Update).
func (r *Repository) WriteTree(path string, data []byte) (Oid, error) {
	blobObj := r.backend.Storer.NewEncodedObject()
	blobObj.SetType(plumbing.BlobObject)
	w, err := blobObj.Writer()
	if err != nil {
		return Oid{}, fmt.Errorf("storage: open blob writer: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return Oid{}, fmt.Errorf("storage: write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return Oid{}, fmt.Errorf("storage: close blob writer: %w", err)
	}
	blobHash, err := r.backend.Storer.SetEncodedObject(blobObj)
	if err != nil {
		return Oid{}, fmt.Errorf("storage: store blob: %w", err)
	}

	tree := &object.Tree{
		Entries: []object.TreeEntry{
			{Name: path, Mode: filemode.Regular, Hash: blobHash},
		},
	}
	treeObj := r.backend.Storer.NewEncodedObject()
	treeObj.SetType(plumbing.TreeObject)
	if err := tree.Encode(treeObj); err != nil {
		return Oid{}, fmt.Errorf("storage: encode tree: %w", err)
	}
	treeHash, err := r.backend.Storer.SetEncodedObject(treeObj)
	if err != nil {
		return Oid{}, fmt.Errorf("storage: store tree: %w", err)
	}
	return OidFromHash(treeHash), nil
}

// CreateCommit creates a commit with the given tree and parents and, if ref
// is non-empty, updates ref to point at it.
func (r *Repository) CreateCommit(ref plumbing.ReferenceName, tree Oid, parents []Oid, author Identity, message string) (Oid, error) {
	parentHashes := make([]plumbing.Hash, 0, len(parents))
	for _, p := range parents {
		parentHashes = append(parentHashes, p.Hash())
	}
	sig := object.Signature{Name: author.Name, Email: author.Email, When: author.When}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree.Hash(),
		ParentHashes: parentHashes,
	}
	obj := r.backend.Storer.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)
	if err := commit.Encode(obj); err != nil {
		return Oid{}, fmt.Errorf("storage: encode commit: %w", err)
	}
	hash, err := r.backend.Storer.SetEncodedObject(obj)
	if err != nil {
		return Oid{}, fmt.Errorf("storage: store commit: %w", err)
	}
	oid := OidFromHash(hash)
	if ref != "" {
		if err := r.SetReference(ref, oid); err != nil {
			return Oid{}, err
		}
	}
	if r.log != nil {
		r.log.WithFields(logrus.Fields{"ref": ref, "commit": oid}).Debug("created commit")
	}
	return oid, nil
}
