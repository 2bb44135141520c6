// Package staging manages the local directory tree that holds downloaded
// filings between the fetch and ingest steps:
//
//	<root>/<cik>/<filing type>/<accession>/full-submission.txt
package staging

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/model"
)

// DocumentName is the file name of a staged full-submission text.
const DocumentName = "full-submission.txt"

// Area is a staging root on the local filesystem.
type Area struct {
	root string
}

// New returns an Area rooted at root. The directory is created lazily.
func New(root string) *Area {
	return &Area{root: root}
}

// Root returns the staging root directory.
func (a *Area) Root() string { return a.root }

// TypeDir returns the directory holding one CIK's filings of one type.
func (a *Area) TypeDir(cik string, ft model.FilingType) string {
	return filepath.Join(a.root, cik, string(ft))
}

// Reset clears and recreates the type directory for cik.
func (a *Area) Reset(cik string, ft model.FilingType) error {
	dir := a.TypeDir(cik, ft)
	if err := os.RemoveAll(dir); err != nil {
		return eris.Wrapf(err, "staging: clear %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "staging: create %s", dir)
	}
	return nil
}

// DocumentPath creates the accession directory and returns the path the
// full-submission text should be written to.
func (a *Area) DocumentPath(cik string, ft model.FilingType, accession string) (string, error) {
	dir := filepath.Join(a.TypeDir(cik, ft), accession)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "staging: create %s", dir)
	}
	return filepath.Join(dir, DocumentName), nil
}

// RemoveIfEmpty deletes the type directory when it holds no entries.
// A missing directory counts as removed.
func (a *Area) RemoveIfEmpty(cik string, ft model.FilingType) (bool, error) {
	dir := a.TypeDir(cik, ft)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "staging: read %s", dir)
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(dir); err != nil {
		return false, eris.Wrapf(err, "staging: remove %s", dir)
	}
	return true, nil
}

// Document is one staged filing.
type Document struct {
	CIK        string
	FilingType model.FilingType
	Accession  string
	Path       string
}

// Documents lists every staged full-submission text for cik across all
// filing types, ordered by type then accession.
func (a *Area) Documents(cik string) ([]Document, error) {
	base := filepath.Join(a.root, cik)
	var docs []Document

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == base {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != DocumentName {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}
		docs = append(docs, Document{
			CIK:        cik,
			FilingType: model.FilingType(parts[0]),
			Accession:  parts[1],
			Path:       path,
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "staging: walk %s", base)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].FilingType != docs[j].FilingType {
			return docs[i].FilingType < docs[j].FilingType
		}
		return docs[i].Accession < docs[j].Accession
	})
	return docs, nil
}

// CIKs lists the CIK directories present under the staging root.
func (a *Area) CIKs() ([]string, error) {
	entries, err := os.ReadDir(a.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "staging: read %s", a.root)
	}
	var ciks []string
	for _, e := range entries {
		if e.IsDir() {
			ciks = append(ciks, e.Name())
		}
	}
	return ciks, nil
}
