package torrent

import (
	"crypto/sha256"
	"fmt"
	"io"
	"math/bits"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// blockSize is the fixed v2 hashing block size of 16 KiB.
	blockSize = 16384

	// blocksPerChunk groups 128 blocks (2 MiB) into one unit of work,
	// balancing parallelism against per-chunk file I/O overhead.
	blocksPerChunk = 128

	chunkSizeBytes = int64(blocksPerChunk * blockSize)
)

// chunkWork describes a run of consecutive blocks from a single file.
type chunkWork struct {
	fileIndex  int
	path       string
	offset     int64
	length     int64
	firstBlock int
}

type v2FileResult struct {
	relPath    string
	length     int64
	root       [32]byte
	layerBytes []byte
}

// v2HashResult carries the assembled file tree and the piece layers keyed
// by each file's merkle root.
type v2HashResult struct {
	fileTree    map[string]interface{}
	pieceLayers map[string]string
}

type v2Hasher struct {
	files      []fileEntry
	pieceLen   int64
	singleFile bool
	display    Displayer

	bytesHashed int64
	startTime   time.Time
}

func newV2Hasher(files []fileEntry, pieceLen int64, singleFile bool, display Displayer) *v2Hasher {
	return &v2Hasher{
		files:      files,
		pieceLen:   pieceLen,
		singleFile: singleFile,
		display:    display,
	}
}

// layerIndex returns which merkle layer holds hashes covering one piece
// worth of data. Layer 0 is the block layer itself.
func (h *v2Hasher) layerIndex() int {
	if h.pieceLen <= blockSize {
		return 0
	}
	return bits.TrailingZeros64(uint64(h.pieceLen)) - bits.TrailingZeros64(uint64(blockSize))
}

// hashFiles block-hashes every regular file across numWorkers goroutines
// and assembles the per-file merkle trees. Pad files are skipped, empty
// files still receive a root over zero blocks.
func (h *v2Hasher) hashFiles(numWorkers int) (*v2HashResult, error) {
	var work []chunkWork
	totalBlocks := 0
	for i, f := range h.files {
		if f.isPadding || f.length == 0 {
			continue
		}

		offset := int64(0)
		blockIndex := 0
		for offset < f.length {
			chunkLen := f.length - offset
			if chunkLen > chunkSizeBytes {
				chunkLen = chunkSizeBytes
			}

			work = append(work, chunkWork{
				fileIndex:  i,
				path:       f.path,
				offset:     offset,
				length:     chunkLen,
				firstBlock: blockIndex,
			})

			blocksInChunk := int((chunkLen + blockSize - 1) / blockSize)
			blockIndex += blocksInChunk
			totalBlocks += blocksInChunk
			offset += chunkLen
		}
	}

	// results aligns with work, so per-file hashes come back in block
	// order without any sorting.
	results := make([][][32]byte, len(work))

	if len(work) == 0 {
		h.display.ShowProgress(0)
		h.display.FinishProgress()
		return h.assemble(work, results)
	}

	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(work) {
		numWorkers = len(work)
	}

	h.startTime = time.Now()
	h.bytesHashed = 0
	h.display.ShowProgress(totalBlocks)

	var completedBlocks uint64
	chunksPerWorker := (len(work) + numWorkers - 1) / numWorkers
	errorsCh := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunksPerWorker
		end := start + chunksPerWorker
		if end > len(work) {
			end = len(work)
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(startChunk, endChunk int) {
			defer wg.Done()
			if err := h.hashChunkRange(work, results, startChunk, endChunk, &completedBlocks); err != nil {
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
				completed := atomic.LoadUint64(&completedBlocks)
				bytesHashed := atomic.LoadInt64(&h.bytesHashed)
				elapsed := time.Since(h.startTime).Seconds()
				var rate float64
				if elapsed > 0 {
					rate = float64(bytesHashed) / elapsed
				}
				h.display.UpdateProgress(int(completed), rate)
				if completed >= uint64(totalBlocks) {
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
			return nil, err
		}
	}

	h.display.FinishProgress()
	return h.assemble(work, results)
}

// hashChunkRange hashes chunks [startChunk, endChunk). Consecutive chunks
// of the same file reuse one handle, the final partial block is hashed at
// its true length without padding.
func (h *v2Hasher) hashChunkRange(work []chunkWork, results [][][32]byte, startChunk, endChunk int, completedBlocks *uint64) error {
	buf := make([]byte, blockSize)
	readers := make(map[string]*fileReader)
	defer func() {
		for _, r := range readers {
			if r.file != nil {
				r.file.Close()
			}
		}
	}()

	for ci := startChunk; ci < endChunk; ci++ {
		chunk := work[ci]

		reader, ok := readers[chunk.path]
		if !ok {
			f, err := os.OpenFile(chunk.path, os.O_RDONLY, 0)
			if err != nil {
				return fmt.Errorf("could not open file %s: %w", chunk.path, err)
			}
			reader = &fileReader{file: f, position: -1, length: h.files[chunk.fileIndex].length}
			readers[chunk.path] = reader
		}

		if reader.position != chunk.offset {
			if _, err := reader.file.Seek(chunk.offset, io.SeekStart); err != nil {
				return fmt.Errorf("could not seek in file %s: %w", chunk.path, err)
			}
			reader.position = chunk.offset
		}

		numBlocks := int((chunk.length + blockSize - 1) / blockSize)
		hashes := make([][32]byte, 0, numBlocks)
		remaining := chunk.length
		for remaining > 0 {
			readLen := int64(blockSize)
			if remaining < readLen {
				readLen = remaining
			}

			n, err := io.ReadFull(reader.file, buf[:readLen])
			if err != nil {
				return fmt.Errorf("could not read file %s: %w", chunk.path, err)
			}

			hashes = append(hashes, sha256.Sum256(buf[:n]))
			reader.position += int64(n)
			remaining -= int64(n)
			atomic.AddInt64(&h.bytesHashed, int64(n))
		}

		results[ci] = hashes
		atomic.AddUint64(completedBlocks, uint64(numBlocks))
	}

	return nil
}

// assemble regroups chunk results per file, computes each file's merkle
// root and piece layer, and builds the file tree.
func (h *v2Hasher) assemble(work []chunkWork, results [][][32]byte) (*v2HashResult, error) {
	layerIndex := h.layerIndex()

	blockHashes := make(map[int][][32]byte)
	for i := range work {
		blockHashes[work[i].fileIndex] = append(blockHashes[work[i].fileIndex], results[i]...)
	}

	var fileResults []v2FileResult
	for i, f := range h.files {
		if f.isPadding {
			continue
		}

		root, layers := computeMerkleRoot(blockHashes[i])

		var layerBytes []byte
		if f.length > h.pieceLen && layerIndex < len(layers) {
			layer := layers[layerIndex]
			layerBytes = make([]byte, 0, len(layer)*32)
			for _, hash := range layer {
				layerBytes = append(layerBytes, hash[:]...)
			}
		}

		fileResults = append(fileResults, v2FileResult{
			relPath:    f.relPath,
			length:     f.length,
			root:       root,
			layerBytes: layerBytes,
		})
	}

	fileTree := make(map[string]interface{})
	pieceLayers := make(map[string]string)

	for _, res := range fileResults {
		if res.layerBytes != nil {
			pieceLayers[string(res.root[:])] = string(res.layerBytes)
		}

		if h.singleFile {
			fileTree[""] = fileTreeNode(res.length, res.root)
		} else {
			insertIntoTree(fileTree, strings.Split(res.relPath, "/"), res.length, res.root)
		}
	}

	return &v2HashResult{
		fileTree:    fileTree,
		pieceLayers: pieceLayers,
	}, nil
}

// fileTreeNode builds the leaf dictionary for one file, keyed by the empty
// string as the v2 format requires.
func fileTreeNode(length int64, root [32]byte) map[string]interface{} {
	return map[string]interface{}{
		"": map[string]interface{}{
			"length":      length,
			"pieces root": string(root[:]),
		},
	}
}

// insertIntoTree places a file leaf at its path inside the tree, creating
// directory dictionaries on the way down.
func insertIntoTree(tree map[string]interface{}, components []string, length int64, root [32]byte) {
	if len(components) == 0 {
		return
	}

	name := components[0]
	if len(components) == 1 {
		tree[name] = fileTreeNode(length, root)
		return
	}

	sub, ok := tree[name].(map[string]interface{})
	if !ok {
		sub = make(map[string]interface{})
		tree[name] = sub
	}
	insertIntoTree(sub, components[1:], length, root)
}

// computeMerkleRoot builds the merkle tree bottom up and returns the root
// together with all layers, layer 0 being the block hashes themselves. An
// odd node at the end of a layer is promoted unchanged. Zero blocks hash
// to the digest of empty input.
func computeMerkleRoot(blockHashes [][32]byte) ([32]byte, [][][32]byte) {
	if len(blockHashes) == 0 {
		return sha256.Sum256(nil), [][][32]byte{{}}
	}

	layers := [][][32]byte{blockHashes}
	for len(layers[len(layers)-1]) > 1 {
		prev := layers[len(layers)-1]
		next := make([][32]byte, 0, (len(prev)+1)/2)
		for i := 0; i < len(prev); i += 2 {
			if i+1 < len(prev) {
				var pair [64]byte
				copy(pair[:32], prev[i][:])
				copy(pair[32:], prev[i+1][:])
				next = append(next, sha256.Sum256(pair[:]))
			} else {
				next = append(next, prev[i])
			}
		}
		layers = append(layers, next)
	}

	return layers[len(layers)-1][0], layers
}
