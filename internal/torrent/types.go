package torrent

import (
	"fmt"
	"os"
	"strings"
)

// Mode selects which metainfo format a torrent is built with.
type Mode int

const (
	// ModeV1 builds a BEP 3 torrent with SHA-1 pieces only.
	ModeV1 Mode = iota
	// ModeV2 builds a BEP 52 torrent with a SHA-256 file tree only.
	ModeV2
	// ModeHybrid builds both formats in one torrent, padding files to
	// align file boundaries with piece boundaries.
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeV2:
		return "v2"
	case ModeHybrid:
		return "hybrid"
	default:
		return "v1"
	}
}

// ParseMode parses a mode name as used in presets and batch files.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "v1":
		return ModeV1, nil
	case "v2":
		return ModeV2, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return ModeV1, fmt.Errorf("unknown torrent mode %q (want v1, v2 or hybrid)", s)
	}
}

// CreateTorrentOptions contains all options for creating a torrent
type CreateTorrentOptions struct {
	Path            string
	Name            string
	OutputPath      string
	TrackerURLs     []string // one entry per tier, URLs within a tier comma-separated
	WebSeeds        []string
	Comment         string
	Source          string
	Mode            Mode
	PieceLengthExp  *uint
	MaxPieceLength  *uint
	CreationDate    int64 // unix seconds, 0 means now
	IsPrivate       bool
	NoDate          bool
	NoCreator       bool
	Entropy         bool
	SkipPrefix      bool
	Force           bool
	DryRun          bool
	Verbose         bool
	Quiet           bool
	ExcludePatterns []string
	IncludePatterns []string
	Workers         int
	Version         string
}

// TorrentInfo summarizes a created torrent file
type TorrentInfo struct {
	Path       string
	Size       int64
	InfoHash   string
	InfoHashV2 string
	Files      int
	Announce   string
	MagnetLink string
	Torrent    *Torrent
}

// fileEntry describes one entry of the torrent's virtual byte stream.
// Padding entries have no backing file on disk.
type fileEntry struct {
	path      string // absolute path on disk, empty for padding
	relPath   string // slash-separated path inside the torrent
	length    int64
	offset    int64
	isPadding bool
	missing   bool // set during verification when the file is absent or the wrong size
}

// fileReader caches an open file handle between pieces hashed by one worker
type fileReader struct {
	file     *os.File
	position int64
	length   int64
}
