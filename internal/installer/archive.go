package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ArchiveKind enumerates the archive formats the installer can extract
// (spec §4.5 "Archive type is decided from extension or Content-Type").
// Only formats with a pure-stdlib reader are supported; there is no xz
// reader in the standard library and no ecosystem xz package appears
// anywhere in the retrieval pack, so .tar.xz dists are rejected with an
// explicit error rather than silently mishandled.
type ArchiveKind uint8

const (
	ArchiveUnknown ArchiveKind = iota
	ArchiveZip
	ArchiveTar
	ArchiveTarGz
	ArchiveTarBz2
)

// DetectArchiveKindFromPath infers the archive kind from a file extension.
func DetectArchiveKindFromPath(path string) ArchiveKind {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return ArchiveZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ArchiveTarGz
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return ArchiveTarBz2
	case strings.HasSuffix(lower, ".tar"):
		return ArchiveTar
	default:
		return ArchiveUnknown
	}
}

// DetectArchiveKindFromContentType infers the archive kind from an HTTP
// Content-Type header, for dist sources that don't carry a useful file
// extension in their URL.
func DetectArchiveKindFromContentType(contentType string) ArchiveKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "gzip"):
		return ArchiveTarGz
	case strings.Contains(ct, "bzip2"):
		return ArchiveTarBz2
	case strings.Contains(ct, "x-tar"):
		return ArchiveTar
	case strings.Contains(ct, "zip"):
		return ArchiveZip
	default:
		return ArchiveUnknown
	}
}

// ExtractArchive extracts archivePath (of the given kind) into destDir,
// validating every entry against path traversal and stripping a shared
// top-level directory component when every entry carries one (spec §4.5
// "Extraction"). destDir is created if missing.
func ExtractArchive(archivePath, destDir string, kind ArchiveKind) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating destination %q", destDir)
	}
	destCanonical, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		destCanonical = destDir
	}

	switch kind {
	case ArchiveZip:
		return extractZip(archivePath, destDir, destCanonical)
	case ArchiveTar:
		f, err := os.Open(archivePath)
		if err != nil {
			return errors.Wrapf(err, "opening archive %q", archivePath)
		}
		defer f.Close()
		return extractTar(tar.NewReader(f), destDir, destCanonical)
	case ArchiveTarGz:
		f, err := os.Open(archivePath)
		if err != nil {
			return errors.Wrapf(err, "opening archive %q", archivePath)
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "opening gzip stream %q", archivePath)
		}
		defer gz.Close()
		return extractTar(tar.NewReader(gz), destDir, destCanonical)
	case ArchiveTarBz2:
		f, err := os.Open(archivePath)
		if err != nil {
			return errors.Wrapf(err, "opening archive %q", archivePath)
		}
		defer f.Close()
		return extractTar(tar.NewReader(bzip2.NewReader(f)), destDir, destCanonical)
	default:
		return errors.Errorf("unsupported or undetected archive type for %q", archivePath)
	}
}

// safeJoin validates relPath (already stripped of any common prefix)
// against path traversal, then returns the destination path and its
// best-effort canonical form, per spec §4.5: "paths may not contain `..`
// components, and ... the canonical path must be a prefix of the
// canonicalized destination".
func safeJoin(destDir, destCanonical, relPath string) (string, error) {
	if relPath == "" || relPath == "." {
		return "", errors.New("empty entry path")
	}
	cleaned := filepath.Clean(relPath)
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", errors.Errorf("path traversal detected in archive entry %q", relPath)
		}
	}
	out := filepath.Join(destDir, cleaned)

	parent := filepath.Dir(out)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating %q", parent)
	}
	parentCanonical, err := filepath.EvalSymlinks(parent)
	if err != nil {
		parentCanonical = parent
	}
	candidateCanonical := filepath.Join(parentCanonical, filepath.Base(out))
	if candidateCanonical != destCanonical && !strings.HasPrefix(candidateCanonical, destCanonical+string(filepath.Separator)) {
		return "", errors.Errorf("archive entry %q escapes destination directory", relPath)
	}
	return out, nil
}

// hasTraversalComponent reports whether raw — an archive entry's name as
// stored in the archive, before any common-prefix stripping — contains a
// ".." path component (spec §4.5: "Archive entry with a `..` component is
// rejected ... before any bytes are written"). This must run against the
// raw name: checking only the post-strip remainder lets a crafted leading
// ".." component be consumed as the stripped wrapper instead of rejected.
func hasTraversalComponent(raw string) bool {
	normalized := strings.ReplaceAll(raw, "\\", "/")
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func extractZip(archivePath, destDir, destCanonical string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrapf(err, "opening zip %q", archivePath)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if hasTraversalComponent(zf.Name) {
			return errors.Errorf("path traversal detected in archive entry %q", zf.Name)
		}
	}

	prefix := commonZipPrefix(zr.File)
	for _, zf := range zr.File {
		name := strings.TrimPrefix(zf.Name, prefix)
		if name == "" {
			continue
		}
		out, err := safeJoin(destDir, destCanonical, name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(out, 0o755); err != nil {
				return errors.Wrapf(err, "creating directory %q", out)
			}
			continue
		}
		if err := extractZipFile(zf, out); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(zf *zip.File, out string) error {
	rc, err := zf.Open()
	if err != nil {
		return errors.Wrapf(err, "reading zip entry %q", zf.Name)
	}
	defer rc.Close()

	mode := zf.Mode()
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return errors.Wrapf(err, "creating %q", out)
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		return errors.Wrapf(err, "extracting %q", out)
	}
	return nil
}

// commonZipPrefix returns the shared top-level directory component (with
// trailing slash) when every entry in files carries it, mirroring
// Composer's "strip the vendor-package-hash/ wrapper" behavior for
// source-host archive exports.
func commonZipPrefix(files []*zip.File) string {
	if len(files) == 0 {
		return ""
	}
	first := files[0].Name
	slash := strings.IndexByte(first, '/')
	if slash < 0 {
		return ""
	}
	prefix := first[:slash+1]
	for _, f := range files {
		if !strings.HasPrefix(f.Name, prefix) {
			return ""
		}
	}
	return prefix
}

// extractTar strips exactly one leading path component from every entry
// (the vendor-package-ref/ wrapper source-host tarballs always carry),
// mirroring the original extractor's fixed strip_components: 1 rather
// than zip's detect-then-strip approach — a tar stream has no central
// directory to pre-scan for a shared prefix without buffering the whole
// archive.
func extractTar(tr *tar.Reader, destDir, destCanonical string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading tar entry")
		}
		if hasTraversalComponent(hdr.Name) {
			return errors.Errorf("path traversal detected in archive entry %q", hdr.Name)
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		parts := strings.SplitN(name, "/", 2)
		if len(parts) < 2 || parts[1] == "" {
			continue
		}
		out, err := safeJoin(destDir, destCanonical, parts[1])
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(out, 0o755); err != nil {
				return errors.Wrapf(err, "creating directory %q", out)
			}
		case tar.TypeReg:
			mode := os.FileMode(hdr.Mode)
			if mode == 0 {
				mode = 0o644
			}
			f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
			if err != nil {
				return errors.Wrapf(err, "creating %q", out)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return errors.Wrapf(err, "extracting %q", out)
			}
			f.Close()
		default:
			// Symlinks and other special entries are skipped; package
			// archives don't rely on them for correctness.
		}
	}
	return nil
}
