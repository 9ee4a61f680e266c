package torrent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anacrolix/torrent/bencode"
)

// writeTorrentFile marshals tor and writes it next to the test content
func writeTorrentFile(t *testing.T, tor *Torrent, path string) {
	t.Helper()
	data, err := tor.MarshalBytes()
	if err != nil {
		t.Fatalf("MarshalBytes() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write torrent file: %v", err)
	}
}

func TestVerifyData_V1(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "verify_test_v1")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// two files over two 32 KiB pieces, the second piece crossing the
	// file boundary
	contentDir := filepath.Join(tempDir, "release")
	writeTestFile(t, filepath.Join(contentDir, "a.bin"), 40000)
	writeTestFile(t, filepath.Join(contentDir, "b.bin"), 20000)

	tor, err := CreateTorrent(CreateTorrentOptions{
		Path:           contentDir,
		PieceLengthExp: uint_ptr(15),
		NoDate:         true,
		Quiet:          true,
	})
	if err != nil {
		t.Fatalf("CreateTorrent() error = %v", err)
	}
	torrentPath := filepath.Join(tempDir, "release.torrent")
	writeTorrentFile(t, tor, torrentPath)

	verify := func(t *testing.T) *VerificationResult {
		t.Helper()
		result, err := VerifyData(VerifyOptions{
			TorrentPath: torrentPath,
			ContentPath: contentDir,
			Quiet:       true,
		})
		if err != nil {
			t.Fatalf("VerifyData() error = %v", err)
		}
		return result
	}

	t.Run("intact content verifies completely", func(t *testing.T) {
		result := verify(t)
		if result.TotalPieces != 2 || result.GoodPieces != 2 {
			t.Errorf("pieces = %d/%d, want 2/2", result.GoodPieces, result.TotalPieces)
		}
		if result.Completion != 100.0 {
			t.Errorf("completion = %.1f, want 100.0", result.Completion)
		}
		if result.BadPieces != 0 || len(result.MissingFiles) != 0 {
			t.Errorf("unexpected failures: %+v", result)
		}
	})

	t.Run("a corrupted byte fails its piece", func(t *testing.T) {
		path := filepath.Join(contentDir, "b.bin")
		original, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read content: %v", err)
		}
		corrupted := append([]byte{}, original...)
		corrupted[100] ^= 0xFF
		if err := os.WriteFile(path, corrupted, 0644); err != nil {
			t.Fatalf("failed to corrupt content: %v", err)
		}
		defer os.WriteFile(path, original, 0644)

		result := verify(t)
		if result.BadPieces != 1 || result.GoodPieces != 1 {
			t.Errorf("pieces = %d good, %d bad, want 1/1", result.GoodPieces, result.BadPieces)
		}
		if len(result.BadPieceIndices) != 1 || result.BadPieceIndices[0] != 1 {
			t.Errorf("bad piece indices = %v, want [1]", result.BadPieceIndices)
		}
		if result.Completion != 50.0 {
			t.Errorf("completion = %.1f, want 50.0", result.Completion)
		}
	})

	t.Run("a missing file marks its pieces missing", func(t *testing.T) {
		path := filepath.Join(contentDir, "b.bin")
		original, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read content: %v", err)
		}
		if err := os.Remove(path); err != nil {
			t.Fatalf("failed to remove content: %v", err)
		}
		defer os.WriteFile(path, original, 0644)

		result := verify(t)
		if len(result.MissingFiles) != 1 || result.MissingFiles[0] != "b.bin" {
			t.Errorf("missing files = %v, want [b.bin]", result.MissingFiles)
		}
		if result.MissingPieces != 1 || result.GoodPieces != 1 {
			t.Errorf("pieces = %d good, %d missing, want 1/1", result.GoodPieces, result.MissingPieces)
		}
	})

	t.Run("a wrong size is reported as such", func(t *testing.T) {
		path := filepath.Join(contentDir, "b.bin")
		original, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read content: %v", err)
		}
		if err := os.WriteFile(path, original[:19999], 0644); err != nil {
			t.Fatalf("failed to truncate content: %v", err)
		}
		defer os.WriteFile(path, original, 0644)

		result := verify(t)
		if len(result.MissingFiles) != 1 || result.MissingFiles[0] != "b.bin (size mismatch)" {
			t.Errorf("missing files = %v, want [b.bin (size mismatch)]", result.MissingFiles)
		}
	})
}

func TestVerifyData_SingleFileContentPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "verify_test_single")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := filepath.Join(tempDir, "movie.mkv")
	writeTestFile(t, path, 5000)

	tor, err := CreateTorrent(CreateTorrentOptions{
		Path:   path,
		NoDate: true,
		Quiet:  true,
	})
	if err != nil {
		t.Fatalf("CreateTorrent() error = %v", err)
	}
	torrentPath := filepath.Join(tempDir, "movie.torrent")
	writeTorrentFile(t, tor, torrentPath)

	// both the file itself and the directory holding it are accepted
	for _, contentPath := range []string{path, tempDir} {
		result, err := VerifyData(VerifyOptions{
			TorrentPath: torrentPath,
			ContentPath: contentPath,
			Quiet:       true,
		})
		if err != nil {
			t.Fatalf("VerifyData(%q) error = %v", contentPath, err)
		}
		if result.Completion != 100.0 {
			t.Errorf("VerifyData(%q) completion = %.1f, want 100.0", contentPath, result.Completion)
		}
	}
}

func TestVerifyData_V2(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "verify_test_v2")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// a.bin covers two piece spans, b.bin one
	contentDir := filepath.Join(tempDir, "release")
	writeTestFile(t, filepath.Join(contentDir, "a.bin"), 40000)
	writeTestFile(t, filepath.Join(contentDir, "b.bin"), 20000)

	tor, err := CreateTorrent(CreateTorrentOptions{
		Path:           contentDir,
		Mode:           ModeV2,
		PieceLengthExp: uint_ptr(15),
		NoDate:         true,
		Quiet:          true,
	})
	if err != nil {
		t.Fatalf("CreateTorrent() error = %v", err)
	}
	torrentPath := filepath.Join(tempDir, "release.torrent")
	writeTorrentFile(t, tor, torrentPath)

	t.Run("intact content verifies completely", func(t *testing.T) {
		result, err := VerifyData(VerifyOptions{
			TorrentPath: torrentPath,
			ContentPath: contentDir,
			Quiet:       true,
		})
		if err != nil {
			t.Fatalf("VerifyData() error = %v", err)
		}
		if result.TotalPieces != 3 || result.GoodPieces != 3 {
			t.Errorf("piece spans = %d/%d, want 3/3", result.GoodPieces, result.TotalPieces)
		}
		if result.Completion != 100.0 {
			t.Errorf("completion = %.1f, want 100.0", result.Completion)
		}
	})

	t.Run("a corrupted file fails by merkle root", func(t *testing.T) {
		path := filepath.Join(contentDir, "a.bin")
		original, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read content: %v", err)
		}
		corrupted := append([]byte{}, original...)
		corrupted[0] ^= 0xFF
		if err := os.WriteFile(path, corrupted, 0644); err != nil {
			t.Fatalf("failed to corrupt content: %v", err)
		}
		defer os.WriteFile(path, original, 0644)

		result, err := VerifyData(VerifyOptions{
			TorrentPath: torrentPath,
			ContentPath: contentDir,
			Quiet:       true,
		})
		if err != nil {
			t.Fatalf("VerifyData() error = %v", err)
		}
		if len(result.BadFiles) != 1 || result.BadFiles[0] != "a.bin" {
			t.Errorf("bad files = %v, want [a.bin]", result.BadFiles)
		}
		if result.BadPieces != 2 || result.GoodPieces != 1 {
			t.Errorf("piece spans = %d good, %d bad, want 1/2", result.GoodPieces, result.BadPieces)
		}
		if result.Completion >= 100.0 {
			t.Errorf("completion = %.1f, want below 100", result.Completion)
		}
	})

	t.Run("a missing file counts its spans", func(t *testing.T) {
		path := filepath.Join(contentDir, "a.bin")
		original, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read content: %v", err)
		}
		if err := os.Remove(path); err != nil {
			t.Fatalf("failed to remove content: %v", err)
		}
		defer os.WriteFile(path, original, 0644)

		result, err := VerifyData(VerifyOptions{
			TorrentPath: torrentPath,
			ContentPath: contentDir,
			Quiet:       true,
		})
		if err != nil {
			t.Fatalf("VerifyData() error = %v", err)
		}
		if len(result.MissingFiles) != 1 || result.MissingFiles[0] != "a.bin" {
			t.Errorf("missing files = %v, want [a.bin]", result.MissingFiles)
		}
		if result.MissingPieces != 2 || result.GoodPieces != 1 {
			t.Errorf("piece spans = %d good, %d missing, want 1/2", result.GoodPieces, result.MissingPieces)
		}
	})
}

func TestVerifyData_Hybrid(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "verify_test_hybrid")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	contentDir := filepath.Join(tempDir, "release")
	writeTestFile(t, filepath.Join(contentDir, "a.bin"), 1000)
	writeTestFile(t, filepath.Join(contentDir, "b.bin"), 32768)

	tor, err := CreateTorrent(CreateTorrentOptions{
		Path:           contentDir,
		Mode:           ModeHybrid,
		PieceLengthExp: uint_ptr(15),
		NoDate:         true,
		Quiet:          true,
	})
	if err != nil {
		t.Fatalf("CreateTorrent() error = %v", err)
	}
	torrentPath := filepath.Join(tempDir, "release.torrent")
	writeTorrentFile(t, tor, torrentPath)

	t.Run("padding is reconstructed without files on disk", func(t *testing.T) {
		result, err := VerifyData(VerifyOptions{
			TorrentPath: torrentPath,
			ContentPath: contentDir,
			Quiet:       true,
		})
		if err != nil {
			t.Fatalf("VerifyData() error = %v", err)
		}
		// piece counters come from the v1 pass alone
		if result.TotalPieces != 2 || result.GoodPieces != 2 {
			t.Errorf("pieces = %d/%d, want 2/2", result.GoodPieces, result.TotalPieces)
		}
		if result.Completion != 100.0 {
			t.Errorf("completion = %.1f, want 100.0", result.Completion)
		}
		if len(result.BadFiles) != 0 {
			t.Errorf("bad files = %v, want none", result.BadFiles)
		}
	})

	t.Run("corruption shows up in both passes", func(t *testing.T) {
		path := filepath.Join(contentDir, "b.bin")
		original, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read content: %v", err)
		}
		corrupted := append([]byte{}, original...)
		corrupted[5] ^= 0xFF
		if err := os.WriteFile(path, corrupted, 0644); err != nil {
			t.Fatalf("failed to corrupt content: %v", err)
		}
		defer os.WriteFile(path, original, 0644)

		result, err := VerifyData(VerifyOptions{
			TorrentPath: torrentPath,
			ContentPath: contentDir,
			Quiet:       true,
		})
		if err != nil {
			t.Fatalf("VerifyData() error = %v", err)
		}
		if result.BadPieces != 1 {
			t.Errorf("bad pieces = %d, want 1", result.BadPieces)
		}
		if len(result.BadFiles) != 1 || result.BadFiles[0] != "b.bin" {
			t.Errorf("bad files = %v, want [b.bin]", result.BadFiles)
		}
		// hybrid piece counters stay v1 based
		if result.TotalPieces != 2 {
			t.Errorf("total pieces = %d, want 2", result.TotalPieces)
		}
	})
}

func TestVerifyData_NoHashes(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "verify_test_nohash")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// a torrent with neither v1 pieces nor a v2 file tree cannot be verified
	length := int64(100)
	infoBytes, err := bencode.Marshal(&Info{
		Name:        "broken",
		PieceLength: 32768,
		Length:      &length,
	})
	if err != nil {
		t.Fatalf("failed to encode info: %v", err)
	}
	torrentPath := filepath.Join(tempDir, "broken.torrent")
	writeTorrentFile(t, &Torrent{&Meta{InfoBytes: infoBytes}}, torrentPath)

	_, err = VerifyData(VerifyOptions{
		TorrentPath: torrentPath,
		ContentPath: tempDir,
		Quiet:       true,
	})
	if err == nil || !strings.Contains(err.Error(), "neither") {
		t.Errorf("VerifyData() error = %v, want a no hashes error", err)
	}
}
