package modify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anacrolix/torrent/bencode"

	"github.com/mktorlabs/mktor/internal/torrent"
	"github.com/mktorlabs/mktor/internal/torrentutils"
)

// writeSourceTorrent drops a small torrent file named src.torrent into dir
func writeSourceTorrent(t *testing.T, dir string) string {
	t.Helper()
	infoBytes, err := bencode.Marshal(&torrent.Info{
		Name:        "test",
		PieceLength: 32768,
		Pieces:      make([]byte, 20),
	})
	if err != nil {
		t.Fatalf("failed to encode info: %v", err)
	}
	tor := &torrent.Torrent{Meta: &torrent.Meta{
		Announce:     "https://old.example.org/announce",
		CreationDate: 1000,
		InfoBytes:    infoBytes,
	}}
	path := filepath.Join(dir, "src.torrent")
	if err := torrentutils.SaveToFile(tor, path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}
	return path
}

func TestModifyTorrent_TrackerOverride(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "modify_test_tracker")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := writeSourceTorrent(t, tempDir)

	result, err := ModifyTorrent(path, Options{
		TrackerURL: "https://tracker.example.com:2710/announce",
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("ModifyTorrent() error = %v", err)
	}
	if !result.WasModified {
		t.Error("result should be marked modified")
	}

	// tracker output names are prefixed with the tracker domain
	want := filepath.Join(tempDir, "example_test.torrent")
	if result.OutputPath != want {
		t.Errorf("output = %q, want %q", result.OutputPath, want)
	}

	modified, err := torrent.LoadFromFile(result.OutputPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if modified.Announce != "https://tracker.example.com:2710/announce" {
		t.Errorf("announce = %q", modified.Announce)
	}
	if modified.CreatedBy != "mktor/test" {
		t.Errorf("created by = %q", modified.CreatedBy)
	}
	if modified.CreationDate == 1000 || modified.CreationDate == 0 {
		t.Errorf("creation date = %d, want refreshed", modified.CreationDate)
	}
}

func TestModifyTorrent_PrivateFlagChangesInfohash(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "modify_test_private")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := writeSourceTorrent(t, tempDir)
	original, err := torrent.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	originalHash, _ := original.InfoHashes()

	private := true
	result, err := ModifyTorrent(path, Options{
		IsPrivate: &private,
		Comment:   "now private",
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("ModifyTorrent() error = %v", err)
	}

	// without a tracker or pattern the output gets the -modified suffix
	want := filepath.Join(tempDir, "src-modified.torrent")
	if result.OutputPath != want {
		t.Errorf("output = %q, want %q", result.OutputPath, want)
	}

	modified, err := torrent.LoadFromFile(result.OutputPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	info := modified.GetInfo()
	if info.Private == nil || !*info.Private {
		t.Error("private flag not set")
	}
	if modified.Comment != "now private" {
		t.Errorf("comment = %q", modified.Comment)
	}

	newHash, _ := modified.InfoHashes()
	if newHash == originalHash {
		t.Error("flipping the private flag should change the infohash")
	}
}

func TestModifyTorrent_OutputVariants(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "modify_test_output")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := writeSourceTorrent(t, tempDir)

	t.Run("pattern fixes the file name", func(t *testing.T) {
		result, err := ModifyTorrent(path, Options{
			Comment:       "x",
			OutputPattern: "custom",
			Version:       "test",
		})
		if err != nil {
			t.Fatalf("ModifyTorrent() error = %v", err)
		}
		want := filepath.Join(tempDir, "custom.torrent")
		if result.OutputPath != want {
			t.Errorf("output = %q, want %q", result.OutputPath, want)
		}
	})

	t.Run("output dir is created on demand", func(t *testing.T) {
		outDir := filepath.Join(tempDir, "out", "sub")
		result, err := ModifyTorrent(path, Options{
			Comment:   "x",
			OutputDir: outDir,
			Version:   "test",
		})
		if err != nil {
			t.Fatalf("ModifyTorrent() error = %v", err)
		}
		if filepath.Dir(result.OutputPath) != outDir {
			t.Errorf("output = %q, want inside %q", result.OutputPath, outDir)
		}
		if _, err := os.Stat(result.OutputPath); err != nil {
			t.Errorf("output file not written: %v", err)
		}
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		result, err := ModifyTorrent(path, Options{
			Comment: "x",
			DryRun:  true,
			Version: "test",
		})
		if err != nil {
			t.Fatalf("ModifyTorrent() error = %v", err)
		}
		if !result.WasModified {
			t.Error("dry run should still report the pending change")
		}
		if result.OutputPath != "" {
			t.Errorf("output = %q, want none for a dry run", result.OutputPath)
		}
	})
}

func TestModifyTorrent_Preset(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "modify_test_preset")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := writeSourceTorrent(t, tempDir)

	presetFile := filepath.Join(tempDir, "presets.yaml")
	presetContent := `version: 1
presets:
  emp:
    trackers:
      - https://home.empornium.sx/announce/abc
    source: "Emp"
    private: true
`
	if err := os.WriteFile(presetFile, []byte(presetContent), 0644); err != nil {
		t.Fatalf("failed to write preset file: %v", err)
	}

	result, err := ModifyTorrent(path, Options{
		PresetName: "emp",
		PresetFile: presetFile,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("ModifyTorrent() error = %v", err)
	}

	want := filepath.Join(tempDir, "src-emp.torrent")
	if result.OutputPath != want {
		t.Errorf("output = %q, want %q", result.OutputPath, want)
	}

	modified, err := torrent.LoadFromFile(result.OutputPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if !strings.Contains(modified.Announce, "empornium") {
		t.Errorf("announce = %q", modified.Announce)
	}
	info := modified.GetInfo()
	if info.Source != "Emp" {
		t.Errorf("source = %q, want %q", info.Source, "Emp")
	}
	if info.Private == nil || !*info.Private {
		t.Error("private flag not applied from the preset")
	}
}

func TestProcessTorrents(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "modify_test_batch")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := writeSourceTorrent(t, tempDir)
	missing := filepath.Join(tempDir, "missing.torrent")

	if _, err := ProcessTorrents(nil, Options{Version: "test"}); err == nil {
		t.Error("ProcessTorrents() should fail without inputs")
	}

	results, err := ProcessTorrents([]string{path, missing}, Options{
		Comment: "x",
		Version: "test",
	})
	if err != nil {
		t.Fatalf("ProcessTorrents() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !results[0].WasModified || results[0].Error != nil {
		t.Errorf("result 0 = %+v", results[0])
	}
	// a broken input does not stop the rest of the batch
	if results[1].Error == nil {
		t.Error("result 1 should carry the load error")
	}
}
