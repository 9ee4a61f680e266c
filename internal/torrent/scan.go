package torrent

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shibumi/go-pathspec"
)

// splitPatterns flattens comma separated pattern flags into single patterns
func splitPatterns(raw []string) []string {
	var patterns []string
	for _, entry := range raw {
		for _, p := range strings.Split(entry, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
	}
	return patterns
}

// compilePatterns drops patterns the matcher cannot parse, keeping the rest
func compilePatterns(raw []string, display Displayer) []string {
	patterns := make([]string, 0, len(raw))
	for _, p := range raw {
		if _, err := pathspec.GitIgnore([]string{p}, "probe"); err != nil {
			display.ShowWarning(fmt.Sprintf("invalid pattern %q: %v", p, err))
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// matchesPatterns matches a slash separated relative path with gitignore semantics
func matchesPatterns(patterns []string, relPath string) bool {
	if len(patterns) == 0 {
		return false
	}
	match, err := pathspec.GitIgnore(patterns, relPath)
	return err == nil && match
}

// scanFiles walks path and returns the torrent's file entries in their final
// order, plus the total content size. The order is the byte-lexicographic
// order of the slash separated relative paths; offsets are assigned after
// sorting, so two scans of the same tree always produce the same layout.
// outputPath, when inside the scanned tree, is skipped.
func scanFiles(path string, outputPath string, excludes, includes []string, display Displayer) ([]fileEntry, int64, error) {
	srcInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, 0, fmt.Errorf("could not access input path: %w", err)
	}

	excludes = compilePatterns(splitPatterns(excludes), display)
	includes = compilePatterns(splitPatterns(includes), display)

	if !srcInfo.IsDir() {
		return []fileEntry{{
			path:    path,
			relPath: filepath.Base(path),
			length:  srcInfo.Size(),
		}}, srcInfo.Size(), nil
	}

	absOutput := ""
	if outputPath != "" && outputPath != "-" {
		if abs, err := filepath.Abs(outputPath); err == nil {
			absOutput = abs
		}
	}

	var files []fileEntry
	err = filepath.Walk(path, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if absOutput != "" {
			if abs, err := filepath.Abs(walkPath); err == nil && abs == absOutput {
				return nil
			}
		}

		rel, err := filepath.Rel(path, walkPath)
		if err != nil {
			return fmt.Errorf("could not build relative path for %s: %w", walkPath, err)
		}
		relSlash := filepath.ToSlash(rel)

		if matchesPatterns(excludes, relSlash) {
			return nil
		}
		if len(includes) > 0 && !matchesPatterns(includes, relSlash) {
			return nil
		}

		files = append(files, fileEntry{
			path:    walkPath,
			relPath: relSlash,
			length:  info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("could not scan directory: %w", err)
	}

	if len(files) == 0 {
		return nil, 0, ErrEmptyInput
	}

	// the relative path order decides the files list and file tree layout,
	// which in turn decide the info hash
	sort.Slice(files, func(i, j int) bool {
		return files[i].relPath < files[j].relPath
	})

	var total int64
	for i := range files {
		files[i].offset = total
		total += files[i].length
	}
	return files, total, nil
}

// addPaddingFiles inserts a padding entry after every non-final file whose
// length is not piece aligned, then recomputes offsets. Hybrid torrents use
// this so each file starts on a piece boundary.
func addPaddingFiles(files []fileEntry, pieceLen int64) []fileEntry {
	padded := make([]fileEntry, 0, len(files)*2)
	var offset int64

	for i, f := range files {
		f.offset = offset
		offset += f.length
		padded = append(padded, f)

		if i == len(files)-1 {
			continue
		}
		if remainder := f.length % pieceLen; remainder > 0 {
			padLen := pieceLen - remainder
			padded = append(padded, fileEntry{
				relPath:   ".pad/" + strconv.FormatInt(padLen, 10),
				length:    padLen,
				offset:    offset,
				isPadding: true,
			})
			offset += padLen
		}
	}
	return padded
}

// generateCrossSeedID returns a random token for the x_cross_seed field so
// repeated runs over identical content still produce distinct info hashes.
func generateCrossSeedID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("could not generate cross-seed entropy: %w", err)
	}
	return fmt.Sprintf("mktor-%X", b), nil
}
