package torrent

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// padZero feeds zero bytes into the hash for pad file ranges so that pad
// files never touch the disk.
var padZero [64 << 10]byte

type pieceHasher struct {
	pieces   [][]byte
	pieceLen int64
	files    []fileEntry
	display  Displayer

	bufferPool *sync.Pool
	readSize   int

	bytesHashed int64
	startTime   time.Time
}

func NewPieceHasher(files []fileEntry, pieceLen int64, numPieces int, display Displayer) *pieceHasher {
	return &pieceHasher{
		pieces:   make([][]byte, numPieces),
		pieceLen: pieceLen,
		files:    files,
		display:  display,
	}
}

// optimizeForWorkload sizes the read buffer for the file layout and returns
// a worker count suited to it. Single large files get big sequential reads,
// many small files get more workers on smaller buffers.
func (h *pieceHasher) optimizeForWorkload() int {
	if len(h.files) == 0 {
		return 0
	}

	var totalSize int64
	for _, f := range h.files {
		totalSize += f.length
	}
	avgFileSize := totalSize / int64(len(h.files))

	var numWorkers int
	switch {
	case len(h.files) == 1:
		if totalSize < 1<<20 {
			h.readSize = 64 << 10
			numWorkers = 1
		} else if totalSize < 1<<30 {
			h.readSize = 4 << 20
			numWorkers = 2
		} else {
			h.readSize = 8 << 20
			numWorkers = 4
		}
	case avgFileSize < 1<<20:
		h.readSize = 256 << 10
		numWorkers = min(8, runtime.NumCPU())
	case avgFileSize < 10<<20:
		h.readSize = 1 << 20
		numWorkers = min(4, runtime.NumCPU())
	default:
		h.readSize = 4 << 20
		numWorkers = min(2, runtime.NumCPU())
	}

	if numWorkers > len(h.pieces) {
		numWorkers = len(h.pieces)
	}
	if numWorkers == 0 {
		numWorkers = 1
	}
	return numWorkers
}

// hashPieces hashes all pieces across numWorkers goroutines, each worker
// owning a contiguous piece range. The caller's worker count is capped to
// what the workload can use.
func (h *pieceHasher) hashPieces(numWorkers int) error {
	if numWorkers <= 0 && len(h.files) > 0 {
		return errors.New("number of workers must be greater than zero when files are present")
	}
	if len(h.pieces) == 0 || len(h.files) == 0 {
		h.display.ShowProgress(0)
		h.display.FinishProgress()
		return nil
	}

	if auto := h.optimizeForWorkload(); numWorkers > auto {
		numWorkers = auto
	}

	h.bufferPool = &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, h.readSize)
			return buf
		},
	}
	h.startTime = time.Now()
	h.bytesHashed = 0

	h.display.ShowProgress(len(h.pieces))

	var completedPieces uint64
	piecesPerWorker := (len(h.pieces) + numWorkers - 1) / numWorkers
	errorsCh := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * piecesPerWorker
		end := start + piecesPerWorker
		if end > len(h.pieces) {
			end = len(h.pieces)
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(startPiece, endPiece int) {
			defer wg.Done()
			if err := h.hashPieceRange(startPiece, endPiece, &completedPieces); err != nil {
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
				bytesHashed := atomic.LoadInt64(&h.bytesHashed)
				elapsed := time.Since(h.startTime).Seconds()
				var rate float64
				if elapsed > 0 {
					rate = float64(bytesHashed) / elapsed
				}
				h.display.UpdateProgress(int(completed), rate)
				if completed >= uint64(len(h.pieces)) {
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
			h.display.FinishProgress()
			return err
		}
	}

	h.display.FinishProgress()
	return nil
}

// hashPieceRange hashes pieces [startPiece, endPiece). File handles are
// cached per worker and reused across pieces since consecutive pieces
// usually read from the same file.
func (h *pieceHasher) hashPieceRange(startPiece, endPiece int, completedPieces *uint64) error {
	buf := h.bufferPool.Get().([]byte)
	defer h.bufferPool.Put(buf)

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
		pieceOffset := int64(pieceIndex) * h.pieceLen
		pieceEnd := pieceOffset + h.pieceLen
		hasher.Reset()

		// skip files that end before this piece starts, pieces are
		// processed in ascending order so the index never moves back
		for currentFileIndex < len(h.files) && h.files[currentFileIndex].offset+h.files[currentFileIndex].length <= pieceOffset {
			currentFileIndex++
		}

		for fIdx := currentFileIndex; fIdx < len(h.files); fIdx++ {
			file := h.files[fIdx]
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
					atomic.AddInt64(&h.bytesHashed, n)
				}
				continue
			}

			reader, ok := readers[file.path]
			if !ok {
				f, err := os.OpenFile(file.path, os.O_RDONLY, 0)
				if err != nil {
					return fmt.Errorf("could not open file %s: %w", file.path, err)
				}
				reader = &fileReader{file: f, position: -1, length: file.length}
				readers[file.path] = reader
			}

			if reader.position != readStart {
				if _, err := reader.file.Seek(readStart, io.SeekStart); err != nil {
					return fmt.Errorf("could not seek in file %s: %w", file.path, err)
				}
				reader.position = readStart
			}

			remaining := readLength
			for remaining > 0 {
				readLen := int64(len(buf))
				if remaining < readLen {
					readLen = remaining
				}

				n, err := io.ReadFull(reader.file, buf[:readLen])
				if err != nil {
					return fmt.Errorf("could not read file %s: %w", file.path, err)
				}

				hasher.Write(buf[:n])
				reader.position += int64(n)
				remaining -= int64(n)
				atomic.AddInt64(&h.bytesHashed, int64(n))
			}
		}

		h.pieces[pieceIndex] = hasher.Sum(nil)
		atomic.AddUint64(completedPieces, 1)
	}

	return nil
}
