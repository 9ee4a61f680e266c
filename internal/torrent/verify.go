package torrent

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// VerifyOptions holds the inputs for a verification run
type VerifyOptions struct {
	TorrentPath string
	ContentPath string
	Workers     int
	Verbose     bool
	Quiet       bool
}

// VerificationResult summarizes how much of the content on disk matches the
// torrent. Piece counters come from the v1 pieces when the torrent has them,
// otherwise from the piece sized spans of the v2 file tree. BadFiles lists
// files whose recomputed merkle root does not match the tree.
type VerificationResult struct {
	TotalPieces     int
	GoodPieces      int
	BadPieces       int
	MissingPieces   int
	Completion      float64
	BadPieceIndices []int
	MissingFiles    []string
	BadFiles        []string
}

type pieceVerifier struct {
	pieces    []byte
	pieceLen  int64
	numPieces int
	files     []fileEntry
	display   Displayer

	bufferPool *sync.Pool
	readSize   int
	missingSet []bool

	goodPieces    uint64
	badPieces     uint64
	missingPieces uint64

	mu              sync.Mutex
	badPieceIndices []int

	bytesVerified int64
	startTime     time.Time
}

// VerifyData re-hashes content on disk and compares it against a torrent
// file. Torrents with v1 pieces are checked piece by piece, torrents with a
// v2 file tree get every file's merkle root recomputed, hybrids get both.
func VerifyData(opts VerifyOptions) (*VerificationResult, error) {
	t, err := LoadFromFile(opts.TorrentPath)
	if err != nil {
		return nil, fmt.Errorf("could not load torrent file %q: %w", opts.TorrentPath, err)
	}
	info := t.GetInfo()
	if info == nil {
		return nil, fmt.Errorf("could not parse info dictionary from %q", opts.TorrentPath)
	}

	hasV1 := len(info.Pieces) > 0
	hasV2 := info.MetaVersion == 2 && len(info.FileTree) > 0
	if !hasV1 && !hasV2 {
		return nil, errors.New("torrent carries neither v1 pieces nor a v2 file tree")
	}

	display := NewDisplay(NewFormatter(opts.Verbose))
	display.SetQuiet(opts.Quiet)

	result := &VerificationResult{}

	var contentFiles []fileEntry
	if hasV1 {
		files, missingFiles, err := mapContentFiles(info, opts.ContentPath)
		if err != nil {
			return nil, err
		}
		contentFiles = files
		if opts.Verbose {
			display.ShowFiles(files)
		}

		verifier := &pieceVerifier{
			pieces:    info.Pieces,
			pieceLen:  info.PieceLength,
			numPieces: info.NumPieces(),
			files:     files,
			display:   display,
		}
		if err := verifier.verifyPieces(opts.Workers); err != nil {
			return nil, fmt.Errorf("verification failed: %w", err)
		}

		result.TotalPieces = verifier.numPieces
		result.GoodPieces = int(verifier.goodPieces)
		result.BadPieces = int(verifier.badPieces)
		result.MissingPieces = int(verifier.missingPieces)
		result.BadPieceIndices = verifier.badPieceIndices
		result.MissingFiles = missingFiles
	}

	if hasV2 {
		if err := verifyFileTree(info, opts.ContentPath, opts.Workers, display, contentFiles, result); err != nil {
			return nil, err
		}
	}

	switch {
	case result.TotalPieces > 0:
		result.Completion = float64(result.GoodPieces) / float64(result.TotalPieces) * 100.0
	case result.BadPieces == 0 && result.MissingPieces == 0 && len(result.MissingFiles) == 0 && len(result.BadFiles) == 0:
		result.Completion = 100.0
	}

	return result, nil
}

// mapContentFiles lays the torrent's byte stream out against paths on disk,
// in the file order the info dictionary declares. Files that are absent or
// have the wrong size stay in the layout but are flagged missing so the
// pieces they cover can be accounted for without reading them.
func mapContentFiles(info *Info, contentPath string) ([]fileEntry, []string, error) {
	base := filepath.Clean(contentPath)

	if len(info.Files) > 0 {
		files := make([]fileEntry, 0, len(info.Files))
		var missingFiles []string
		var offset int64
		for _, f := range info.Files {
			entry := fileEntry{
				relPath: strings.Join(f.Path, "/"),
				length:  f.Length,
				offset:  offset,
			}
			if f.Attr == "p" {
				entry.isPadding = true
			} else {
				entry.path = filepath.Join(base, filepath.FromSlash(entry.relPath))
				if suffix, missing := missingReason(entry.path, f.Length); missing {
					entry.missing = true
					missingFiles = append(missingFiles, entry.relPath+suffix)
				}
			}
			files = append(files, entry)
			offset += f.Length
		}
		return files, missingFiles, nil
	}

	if info.Length == nil {
		return nil, nil, errors.New("info dictionary has neither a files list nor a length")
	}

	entry := fileEntry{
		path:    resolveContentPath(base, info.Name),
		relPath: info.Name,
		length:  *info.Length,
	}
	var missingFiles []string
	if suffix, missing := missingReason(entry.path, entry.length); missing {
		entry.missing = true
		missingFiles = append(missingFiles, info.Name+suffix)
	}
	return []fileEntry{entry}, missingFiles, nil
}

// resolveContentPath returns the content path of a single file torrent,
// accepting either the file itself or the directory that holds it.
func resolveContentPath(contentPath, name string) string {
	if fi, err := os.Stat(contentPath); err == nil && fi.IsDir() {
		return filepath.Join(contentPath, name)
	}
	return contentPath
}

// missingReason reports whether the file at path is unusable for
// verification, with a suffix describing why for the missing files list.
func missingReason(path string, length int64) (string, bool) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", true
	}
	if fi.Size() != length {
		return " (size mismatch)", true
	}
	return "", false
}

// optimizeForWorkload sizes the read buffer for the file layout and returns
// a worker count suited to it, mirroring what hashing uses.
func (v *pieceVerifier) optimizeForWorkload() int {
	if len(v.files) == 0 {
		return 0
	}

	var totalSize int64
	for _, f := range v.files {
		totalSize += f.length
	}
	avgFileSize := totalSize / int64(len(v.files))

	var numWorkers int
	switch {
	case len(v.files) == 1:
		if totalSize < 1<<20 {
			v.readSize = 64 << 10
			numWorkers = 1
		} else if totalSize < 1<<30 {
			v.readSize = 4 << 20
			numWorkers = 2
		} else {
			v.readSize = 8 << 20
			numWorkers = 4
		}
	case avgFileSize < 1<<20:
		v.readSize = 256 << 10
		numWorkers = min(8, runtime.NumCPU())
	case avgFileSize < 10<<20:
		v.readSize = 1 << 20
		numWorkers = min(4, runtime.NumCPU())
	default:
		v.readSize = 4 << 20
		numWorkers = min(2, runtime.NumCPU())
	}

	if numWorkers > v.numPieces {
		numWorkers = v.numPieces
	}
	if numWorkers == 0 {
		numWorkers = 1
	}
	return numWorkers
}

// verifyPieces checks all pieces across worker goroutines. Pieces that
// overlap a missing file are counted as missing and never read.
func (v *pieceVerifier) verifyPieces(numWorkers int) error {
	if v.numPieces == 0 {
		v.display.ShowProgress(0)
		v.display.FinishProgress()
		return nil
	}

	if auto := v.optimizeForWorkload(); numWorkers <= 0 || numWorkers > auto {
		numWorkers = auto
	}

	v.bufferPool = &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, v.readSize)
			return buf
		},
	}

	v.missingSet = make([]bool, v.numPieces)
	for _, f := range v.files {
		if !f.missing || f.length == 0 {
			continue
		}
		first := f.offset / v.pieceLen
		last := (f.offset + f.length - 1) / v.pieceLen
		for p := first; p <= last && p < int64(v.numPieces); p++ {
			v.missingSet[p] = true
		}
	}

	v.startTime = time.Now()
	v.bytesVerified = 0

	v.display.ShowProgress(v.numPieces)

	var completedPieces uint64
	piecesPerWorker := (v.numPieces + numWorkers - 1) / numWorkers
	errorsCh := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * piecesPerWorker
		end := start + piecesPerWorker
		if end > v.numPieces {
			end = v.numPieces
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(startPiece, endPiece int) {
			defer wg.Done()
			if err := v.verifyPieceRange(startPiece, endPiece, &completedPieces); err != nil {
				errorsCh <- err
			}
		}(start, end)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				completed := atomic.LoadUint64(&completedPieces)
				bytesVerified := atomic.LoadInt64(&v.bytesVerified)
				elapsed := time.Since(v.startTime).Seconds()
				var rate float64
				if elapsed > 0 {
					rate = float64(bytesVerified) / elapsed
				}
				v.display.UpdateProgress(int(completed), rate)
				if completed >= uint64(v.numPieces) {
					return
				}
			}
		}
	}()

	wg.Wait()
	close(done)
	close(errorsCh)

	for err := range errorsCh {
		if err != nil {
			v.display.FinishProgress()
			return err
		}
	}

	v.display.FinishProgress()
	sort.Ints(v.badPieceIndices)
	return nil
}

// verifyPieceRange hashes pieces [startPiece, endPiece) and compares each
// against the expected hash. Read failures mark the piece bad instead of
// aborting the run.
func (v *pieceVerifier) verifyPieceRange(startPiece, endPiece int, completedPieces *uint64) error {
	buf := v.bufferPool.Get().([]byte)
	defer v.bufferPool.Put(buf)

	hasher := sha1.New()
	readers := make(map[string]*fileReader)
	defer func() {
		for _, r := range readers {
			if r.file != nil {
				r.file.Close()
			}
		}
	}()

	currentFileIndex := 0

	for pieceIndex := startPiece; pieceIndex < endPiece; pieceIndex++ {
		if v.missingSet[pieceIndex] {
			atomic.AddUint64(&v.missingPieces, 1)
			atomic.AddUint64(completedPieces, 1)
			continue
		}

		pieceOffset := int64(pieceIndex) * v.pieceLen
		pieceEnd := pieceOffset + v.pieceLen
		hasher.Reset()

		for currentFileIndex < len(v.files) && v.files[currentFileIndex].offset+v.files[currentFileIndex].length <= pieceOffset {
			currentFileIndex++
		}

		for fIdx := currentFileIndex; fIdx < len(v.files); fIdx++ {
			file := v.files[fIdx]
			if file.offset >= pieceEnd {
				break
			}
			if file.offset+file.length <= pieceOffset {
				continue
			}

			readStart := int64(0)
			if pieceOffset > file.offset {
				readStart = pieceOffset - file.offset
			}
			readEnd := file.length
			if pieceEnd < file.offset+file.length {
				readEnd = pieceEnd - file.offset
			}
			readLength := readEnd - readStart
			if readLength <= 0 {
				continue
			}

			if file.isPadding {
				for remaining := readLength; remaining > 0; {
					n := int64(len(padZero))
					if remaining < n {
						n = remaining
					}
					hasher.Write(padZero[:n])
					remaining -= n
					atomic.AddInt64(&v.bytesVerified, n)
				}
				continue
			}

			reader, ok := readers[file.path]
			if !ok {
				f, err := os.OpenFile(file.path, os.O_RDONLY, 0)
				if err != nil {
					goto badPiece
				}
				reader = &fileReader{file: f, position: -1, length: file.length}
				readers[file.path] = reader
			}

			if reader.position != readStart {
				if _, err := reader.file.Seek(readStart, io.SeekStart); err != nil {
					goto badPiece
				}
				reader.position = readStart
			}

			for remaining := readLength; remaining > 0; {
				readLen := int64(len(buf))
				if remaining < readLen {
					readLen = remaining
				}

				n, err := io.ReadFull(reader.file, buf[:readLen])
				if err != nil {
					goto badPiece
				}

				hasher.Write(buf[:n])
				reader.position += int64(n)
				remaining -= int64(n)
				atomic.AddInt64(&v.bytesVerified, int64(n))
			}
		}

		if bytes.Equal(hasher.Sum(nil), v.pieces[pieceIndex*20:(pieceIndex+1)*20]) {
			atomic.AddUint64(&v.goodPieces, 1)
		} else {
			v.markBad(pieceIndex)
		}
		atomic.AddUint64(completedPieces, 1)
		continue

	badPiece:
		v.markBad(pieceIndex)
		atomic.AddUint64(completedPieces, 1)
	}

	return nil
}

func (v *pieceVerifier) markBad(pieceIndex int) {
	atomic.AddUint64(&v.badPieces, 1)
	v.mu.Lock()
	v.badPieceIndices = append(v.badPieceIndices, pieceIndex)
	v.mu.Unlock()
}

// verifyFileTree re-hashes every file named by the v2 file tree and compares
// the merkle roots. For hybrid torrents the piece counters already cover the
// data, so root mismatches only add to BadFiles. For v2 only torrents each
// file's piece sized spans are folded into the piece counters as well.
func verifyFileTree(info *Info, contentPath string, numWorkers int, display Displayer, v1Files []fileEntry, result *VerificationResult) error {
	entries := info.FileTreeEntries()
	if len(entries) == 0 {
		return nil
	}

	_, rootIsFile := info.FileTree[""]
	singleFile := info.Length != nil || (len(info.FileTree) == 1 && rootIsFile)
	countSpans := len(info.Pieces) == 0
	base := filepath.Clean(contentPath)

	type treeCheck struct {
		relPath string // tree path, empty for a single file torrent
		name    string // path shown to the user
		length  int64
		root    string
		missing bool
	}

	var v1ByPath map[string]fileEntry
	if v1Files != nil {
		v1ByPath = make(map[string]fileEntry, len(v1Files))
		for _, f := range v1Files {
			if !f.isPadding {
				v1ByPath[f.relPath] = f
			}
		}
	}

	checks := make([]treeCheck, 0, len(entries))
	var present []fileEntry
	for _, e := range entries {
		check := treeCheck{
			relPath: strings.Join(e.Path, "/"),
			length:  e.Length,
			root:    e.PiecesRoot,
		}
		check.name = check.relPath
		if check.name == "" {
			check.name = info.Name
		}

		var diskPath string
		if v1Files != nil {
			// the v1 mapping already resolved and stat'ed these paths
			mapped, ok := v1ByPath[check.name]
			if !ok || mapped.missing {
				check.missing = true
			}
			diskPath = mapped.path
		} else {
			if singleFile {
				diskPath = resolveContentPath(base, info.Name)
			} else {
				diskPath = filepath.Join(base, filepath.FromSlash(check.relPath))
			}
			if suffix, missing := missingReason(diskPath, e.Length); missing {
				check.missing = true
				result.MissingFiles = append(result.MissingFiles, check.name+suffix)
			}
		}

		if !check.missing {
			present = append(present, fileEntry{
				path:    diskPath,
				relPath: check.relPath,
				length:  e.Length,
			})
		}
		checks = append(checks, check)
	}

	computedRoots := make(map[string]string)
	if len(present) > 0 {
		if numWorkers <= 0 {
			numWorkers = runtime.NumCPU()
		}
		res, err := newV2Hasher(present, info.PieceLength, singleFile, display).hashFiles(numWorkers)
		if err != nil {
			return fmt.Errorf("error rehashing file tree: %w", err)
		}

		var computed []FileTreeEntry
		walkFileTree(res.fileTree, nil, &computed)
		for _, e := range computed {
			computedRoots[strings.Join(e.Path, "/")] = e.PiecesRoot
		}
	}

	for _, c := range checks {
		spans := 0
		if c.length > 0 {
			spans = int((c.length + info.PieceLength - 1) / info.PieceLength)
		}

		if c.missing {
			if countSpans {
				result.TotalPieces += spans
				result.MissingPieces += spans
			}
			continue
		}

		root, ok := computedRoots[c.relPath]
		if ok && root == c.root {
			if countSpans {
				result.TotalPieces += spans
				result.GoodPieces += spans
			}
			continue
		}

		result.BadFiles = append(result.BadFiles, c.name)
		if countSpans {
			result.TotalPieces += spans
			result.BadPieces += spans
		}
	}

	return nil
}
