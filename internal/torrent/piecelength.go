package torrent

import (
	"fmt"

	"github.com/mktorlabs/mktor/internal/trackers"
	"github.com/mktorlabs/mktor/internal/utils"
)

const (
	minPieceExp = 15
	maxPieceExp = 28
)

// pieceLengthThresholds maps total content size to the default piece length
// exponent, tuned so torrents stay in the low thousands of pieces
var pieceLengthThresholds = []struct {
	maxSize int64
	exp     uint
}{
	{50 << 20, 15},    // <= 50 MB   -> 32 KiB
	{100 << 20, 16},   // <= 100 MB  -> 64 KiB
	{200 << 20, 17},   // <= 200 MB  -> 128 KiB
	{400 << 20, 18},   // <= 400 MB  -> 256 KiB
	{800 << 20, 19},   // <= 800 MB  -> 512 KiB
	{1600 << 20, 20},  // <= 1.6 GB  -> 1 MiB
	{3200 << 20, 21},  // <= 3.2 GB  -> 2 MiB
	{6400 << 20, 22},  // <= 6.4 GB  -> 4 MiB
	{12800 << 20, 23}, // <= 12.8 GB -> 8 MiB
}

// calculatePieceLength returns the default piece length exponent for a content size
func calculatePieceLength(totalSize int64) uint {
	for _, t := range pieceLengthThresholds {
		if totalSize <= t.maxSize {
			return t.exp
		}
	}
	return 23
}

// resolvePieceLength decides the piece length exponent for a torrent.
// An explicit user exponent wins but is clamped to the tracker's limit.
// Otherwise tracker piece size rules apply when the announce list matches a
// known tracker, falling back to the default thresholds capped by the
// tracker limit and the user's max.
func resolvePieceLength(totalSize int64, userExp, maxExp *uint, trackerURLs []string, display Displayer) (uint, error) {
	config := trackers.FindTrackerConfigAny(trackerURLs)

	if userExp != nil {
		exp := *userExp
		if exp < minPieceExp || exp > maxPieceExp {
			return 0, fmt.Errorf("%w, got 2^%d", ErrInvalidPieceLength, exp)
		}
		if config != nil && config.MaxPieceLength > 0 && exp > config.MaxPieceLength {
			display.ShowWarning(fmt.Sprintf("piece length 2^%d exceeds the %s limit, using %s (2^%d)",
				exp, config.URLs[0], utils.FormatPieceSize(config.MaxPieceLength), config.MaxPieceLength))
			exp = config.MaxPieceLength
		}
		return exp, nil
	}

	if maxExp != nil && (*maxExp < minPieceExp || *maxExp > maxPieceExp) {
		return 0, fmt.Errorf("%w, got max 2^%d", ErrInvalidPieceLength, *maxExp)
	}

	var exp uint
	ok := false
	if config != nil {
		exp, ok = config.PieceSizeExp(uint64(totalSize))
	}
	if !ok {
		exp = calculatePieceLength(totalSize)
		if config != nil && config.MaxPieceLength > 0 && exp > config.MaxPieceLength {
			exp = config.MaxPieceLength
		}
	}
	if maxExp != nil && exp > *maxExp {
		exp = *maxExp
	}
	return exp, nil
}
