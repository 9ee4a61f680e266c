package torrent

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/anacrolix/torrent/bencode"
	humanize "github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"

	"github.com/mktorlabs/mktor/internal/trackers"
	"github.com/mktorlabs/mktor/internal/utils"
)

// buildAnnounce splits every tracker flag value into a comma separated tier
// and returns the scalar announce plus the tier list. A single tracker stays
// in scalar form with no announce-list.
func buildAnnounce(trackerURLs []string) (string, [][]string) {
	var list [][]string
	for _, tierValue := range trackerURLs {
		var tier []string
		for _, u := range strings.Split(tierValue, ",") {
			if u = strings.TrimSpace(u); u != "" {
				tier = append(tier, u)
			}
		}
		if len(tier) > 0 {
			list = append(list, tier)
		}
	}
	if len(list) == 0 {
		return "", nil
	}

	first := list[0][0]
	if len(list) == 1 && len(list[0]) == 1 {
		return first, nil
	}
	return first, list
}

// CreateTorrent builds the torrent metadata without writing it anywhere.
func CreateTorrent(opts CreateTorrentOptions) (*Torrent, error) {
	display := NewDisplay(NewFormatter(opts.Verbose))
	display.SetQuiet(opts.Quiet)
	return createTorrentWithDisplay(opts, display)
}

func createTorrentWithDisplay(opts CreateTorrentOptions, display Displayer) (*Torrent, error) {
	path := opts.Path
	name := opts.Name
	if name == "" {
		// preserve the folder name even for single-file torrents
		name = filepath.Base(filepath.Clean(path))
	}

	srcInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("could not access input path: %w", err)
	}
	singleFile := !srcInfo.IsDir()

	files, totalSize, err := scanFiles(path, opts.OutputPath, opts.ExcludePatterns, opts.IncludePatterns, display)
	if err != nil {
		return nil, err
	}

	exp, err := resolvePieceLength(totalSize, opts.PieceLengthExp, opts.MaxPieceLength, opts.TrackerURLs, display)
	if err != nil {
		return nil, err
	}
	pieceLen := int64(1) << exp

	if !singleFile {
		display.ShowSeasonPackWarnings(AnalyzeSeasonPack(name, files))
	}
	if opts.Verbose {
		display.ShowFiles(files)
	}

	// hybrid torrents pad every non-final file up to a piece boundary so
	// v1 pieces never span file boundaries
	if opts.Mode == ModeHybrid && !singleFile {
		files = addPaddingFiles(files, pieceLen)
	}

	var pieces []byte
	if opts.Mode != ModeV2 {
		var paddedTotal int64
		for _, f := range files {
			paddedTotal += f.length
		}
		numPieces := int((paddedTotal + pieceLen - 1) / pieceLen)

		hasher := NewPieceHasher(files, pieceLen, numPieces, display)
		workers := opts.Workers
		if workers <= 0 {
			workers = hasher.optimizeForWorkload()
		}
		if err := hasher.hashPieces(workers); err != nil {
			return nil, fmt.Errorf("error hashing pieces: %w", err)
		}

		pieces = make([]byte, len(hasher.pieces)*20)
		for i, piece := range hasher.pieces {
			copy(pieces[i*20:], piece)
		}
	}

	var v2 *v2HashResult
	if opts.Mode == ModeV2 || opts.Mode == ModeHybrid {
		v2hasher := newV2Hasher(files, pieceLen, singleFile, display)
		workers := opts.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		v2, err = v2hasher.hashFiles(workers)
		if err != nil {
			return nil, fmt.Errorf("error hashing v2 blocks: %w", err)
		}
	}

	info := &Info{
		Name:        name,
		PieceLength: pieceLen,
	}

	if opts.IsPrivate {
		private := true
		info.Private = &private
	}

	info.Source = opts.Source
	if info.Source == "" {
		if cfg := trackers.FindTrackerConfigAny(opts.TrackerURLs); cfg != nil {
			info.Source = cfg.Source
		}
	}

	if opts.Entropy {
		id, err := generateCrossSeedID()
		if err != nil {
			return nil, err
		}
		info.CrossSeed = id
	}

	switch {
	case opts.Mode == ModeV2:
		// the file tree carries all layout information
	case singleFile:
		length := totalSize
		info.Length = &length
	default:
		info.Files = make([]FileInfo, len(files))
		for i, f := range files {
			attr := ""
			if f.isPadding {
				attr = "p"
			}
			info.Files[i] = FileInfo{
				Attr:   attr,
				Length: f.length,
				Path:   strings.Split(f.relPath, "/"),
			}
		}
	}

	if opts.Mode != ModeV2 {
		info.Pieces = pieces
	}
	if v2 != nil {
		info.MetaVersion = 2
		info.FileTree = v2.fileTree
	}

	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("error encoding info dictionary: %w", err)
	}

	announce, announceList := buildAnnounce(opts.TrackerURLs)
	meta := &Meta{
		Announce:     announce,
		AnnounceList: announceList,
		Comment:      opts.Comment,
		InfoBytes:    infoBytes,
	}

	if !opts.NoCreator {
		meta.CreatedBy = fmt.Sprintf("mktor/%s", opts.Version)
	}
	if !opts.NoDate {
		if opts.CreationDate > 0 {
			meta.CreationDate = opts.CreationDate
		} else {
			meta.CreationDate = time.Now().Unix()
		}
	}
	if len(opts.WebSeeds) > 0 {
		meta.UrlList = opts.WebSeeds
	}
	if v2 != nil && len(v2.pieceLayers) > 0 {
		meta.PieceLayers = v2.pieceLayers
	}

	return &Torrent{meta}, nil
}

// Create builds a torrent from opts and writes it to the resolved output
// path. An OutputPath of "-" streams the torrent to stdout.
func Create(opts CreateTorrentOptions) (*TorrentInfo, error) {
	display := NewDisplay(NewFormatter(opts.Verbose))
	display.SetQuiet(opts.Quiet)
	return create(opts, display)
}

func create(opts CreateTorrentOptions, display *Display) (*TorrentInfo, error) {
	name := opts.Name
	if name == "" {
		name = filepath.Base(filepath.Clean(opts.Path))
	}

	announce, _ := buildAnnounce(opts.TrackerURLs)

	outputPath := opts.OutputPath
	switch {
	case outputPath == "-":
		// the torrent itself goes to stdout, keep it clean
		display.SetQuiet(true)
	case outputPath == "":
		filename := utils.SanitizeFilename(name) + ".torrent"
		if !opts.SkipPrefix && announce != "" {
			filename = utils.GetDomainPrefix(announce) + "_" + filename
		}
		outputPath = filename
	case !strings.HasSuffix(outputPath, ".torrent"):
		outputPath += ".torrent"
	}
	opts.OutputPath = outputPath

	if opts.DryRun {
		files, totalSize, err := scanFiles(opts.Path, outputPath, opts.ExcludePatterns, opts.IncludePatterns, display)
		if err != nil {
			return nil, err
		}
		exp, err := resolvePieceLength(totalSize, opts.PieceLengthExp, opts.MaxPieceLength, opts.TrackerURLs, display)
		if err != nil {
			return nil, err
		}
		pieceLen := int64(1) << exp
		numPieces := (totalSize + pieceLen - 1) / pieceLen

		display.ShowMessage(fmt.Sprintf("dry run: %d files, %s total, piece length %s (2^%d), %d pieces",
			len(files), humanize.IBytes(uint64(totalSize)), utils.FormatPieceSize(exp), exp, numPieces))
		if opts.Verbose {
			display.ShowFiles(files)
		}

		return &TorrentInfo{
			Path:     outputPath,
			Size:     totalSize,
			Files:    len(files),
			Announce: announce,
		}, nil
	}

	if !opts.Force && outputPath != "-" {
		if _, err := os.Stat(outputPath); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, outputPath)
		}
	}

	t, err := createTorrentWithDisplay(opts, display)
	if err != nil {
		return nil, err
	}

	data, err := t.MarshalBytes()
	if err != nil {
		return nil, fmt.Errorf("error encoding torrent: %w", err)
	}

	if cfg := trackers.FindTrackerConfigAny(opts.TrackerURLs); cfg != nil && cfg.MaxTorrentSize > 0 && uint64(len(data)) > cfg.MaxTorrentSize {
		display.ShowWarning(fmt.Sprintf("torrent file is %s, exceeding the tracker limit of %s, consider a larger piece length",
			humanize.IBytes(uint64(len(data))), humanize.IBytes(cfg.MaxTorrentSize)))
	}

	switch {
	case outputPath == "-":
		if _, err := os.Stdout.Write(data); err != nil {
			return nil, fmt.Errorf("error writing torrent to stdout: %w", err)
		}
	case opts.Force:
		if err := atomic.WriteFile(outputPath, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("error writing torrent file: %w", err)
		}
	default:
		f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return nil, fmt.Errorf("%w: %s", ErrOutputExists, outputPath)
			}
			return nil, fmt.Errorf("error creating output file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing torrent file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("error writing torrent file: %w", err)
		}
	}

	info := t.GetInfo()
	v1, v2 := t.InfoHashes()

	torrentInfo := &TorrentInfo{
		Path:       outputPath,
		Size:       info.TotalLength(),
		InfoHash:   v1,
		InfoHashV2: v2,
		Files:      infoFileCount(info),
		Announce:   announce,
		MagnetLink: t.MagnetLink(),
		Torrent:    t,
	}

	if opts.Verbose {
		display.ShowTorrentInfo(t, info)
		if infoFileCount(info) > 0 {
			display.ShowFileTree(info)
		}
	}

	return torrentInfo, nil
}
