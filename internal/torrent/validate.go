package torrent

import (
	"fmt"
	"net/url"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/mktorlabs/mktor/internal/trackers"
	"github.com/mktorlabs/mktor/internal/utils"
)

// ValidationStatus represents the outcome of a single rule check.
type ValidationStatus string

const (
	ValidationPass ValidationStatus = "PASS"
	ValidationFail ValidationStatus = "FAIL"
	ValidationWarn ValidationStatus = "WARN"
	ValidationInfo ValidationStatus = "INFO"
	ValidationSkip ValidationStatus = "SKIP"
)

// ValidationResult holds the outcome of a single validation rule check.
type ValidationResult struct {
	Rule    string           `json:"rule"`
	Status  ValidationStatus `json:"status"`
	Message string           `json:"message"`
}

// ValidateAgainstTrackerRules checks a torrent's metadata against the known
// rules for a tracker: announce URL presence, private flag, piece size cap
// and recommendation, and .torrent file size cap.
func ValidateAgainstTrackerRules(t *Torrent, info *Info, trackerURL string, rawTorrentBytes []byte) ([]ValidationResult, error) {
	results := []ValidationResult{}

	trackerConfig := trackers.FindTrackerConfig(trackerURL)
	displayURL := "the specified tracker"
	if parsedURL, err := url.Parse(trackerURL); err == nil {
		displayURL = parsedURL.Scheme + "://" + parsedURL.Host + "/..."
	}

	announceMatch := false
	for _, announce := range t.AnnounceURLs() {
		if announce == trackerURL {
			announceMatch = true
			break
		}
		if trackerConfig != nil {
			for _, baseURL := range trackerConfig.URLs {
				if strings.Contains(announce, baseURL) {
					announceMatch = true
					break
				}
			}
		}
		if announceMatch {
			break
		}
	}
	if announceMatch {
		results = append(results, ValidationResult{
			Rule:    "Announce URL",
			Status:  ValidationPass,
			Message: "Torrent contains an announce URL matching the specified tracker/preset.",
		})
	} else {
		results = append(results, ValidationResult{
			Rule:    "Announce URL",
			Status:  ValidationFail,
			Message: fmt.Sprintf("Torrent does not contain an announce URL matching %s or its known aliases.", displayURL),
		})
	}

	if trackerConfig == nil {
		results = append(results, ValidationResult{
			Rule:    "Tracker Recognition",
			Status:  ValidationSkip,
			Message: fmt.Sprintf("No specific rules found for tracker URL containing '%s'. Cannot perform detailed validation.", displayURL),
		})
		return results, nil
	}

	if info.Private == nil || !*info.Private {
		results = append(results, ValidationResult{
			Rule:    "Private Flag",
			Status:  ValidationFail,
			Message: "Torrent is not marked as private, but the tracker likely requires it.",
		})
	} else {
		results = append(results, ValidationResult{
			Rule:    "Private Flag",
			Status:  ValidationPass,
			Message: "Torrent is marked as private.",
		})
	}

	currentExp := uint(0)
	for p := info.PieceLength; p > 1; p >>= 1 {
		currentExp++
	}

	if maxExp, ok := trackers.GetTrackerMaxPieceLength(trackerURL); ok {
		if info.PieceLength > int64(1)<<maxExp {
			results = append(results, ValidationResult{
				Rule:    "Piece Size Limit",
				Status:  ValidationFail,
				Message: fmt.Sprintf("Piece size %s exceeds tracker limit of %s.", utils.FormatPieceSize(currentExp), utils.FormatPieceSize(maxExp)),
			})
		} else {
			results = append(results, ValidationResult{
				Rule:    "Piece Size Limit",
				Status:  ValidationPass,
				Message: fmt.Sprintf("Piece size %s is within tracker limit of %s.", utils.FormatPieceSize(currentExp), utils.FormatPieceSize(maxExp)),
			})
		}
	} else {
		results = append(results, ValidationResult{
			Rule:    "Piece Size Limit",
			Status:  ValidationInfo,
			Message: fmt.Sprintf("No specific piece size limit known for this tracker. Current size: %s.", utils.FormatPieceSize(currentExp)),
		})
	}

	if maxTorrentSize, ok := trackers.GetTrackerMaxTorrentSize(trackerURL); ok {
		if uint64(len(rawTorrentBytes)) > maxTorrentSize {
			results = append(results, ValidationResult{
				Rule:    "Torrent File Size",
				Status:  ValidationFail,
				Message: fmt.Sprintf("Torrent file size %s exceeds tracker limit of %s.", humanize.IBytes(uint64(len(rawTorrentBytes))), humanize.IBytes(maxTorrentSize)),
			})
		} else {
			results = append(results, ValidationResult{
				Rule:    "Torrent File Size",
				Status:  ValidationPass,
				Message: fmt.Sprintf("Torrent file size %s is within tracker limit of %s.", humanize.IBytes(uint64(len(rawTorrentBytes))), humanize.IBytes(maxTorrentSize)),
			})
		}
	} else {
		results = append(results, ValidationResult{
			Rule:    "Torrent File Size",
			Status:  ValidationInfo,
			Message: fmt.Sprintf("No specific torrent file size limit known for this tracker. Current size: %s.", humanize.IBytes(uint64(len(rawTorrentBytes)))),
		})
	}

	if recommendedExp, ok := trackers.GetTrackerPieceSizeExp(trackerURL, uint64(info.TotalLength())); ok {
		if currentExp != recommendedExp {
			results = append(results, ValidationResult{
				Rule:    "Recommended Piece Size",
				Status:  ValidationWarn,
				Message: fmt.Sprintf("Current piece size (%s) differs from tracker recommendation (%s) for this content size.", utils.FormatPieceSize(currentExp), utils.FormatPieceSize(recommendedExp)),
			})
		} else {
			results = append(results, ValidationResult{
				Rule:    "Recommended Piece Size",
				Status:  ValidationPass,
				Message: fmt.Sprintf("Current piece size (%s) matches tracker recommendation.", utils.FormatPieceSize(currentExp)),
			})
		}
	} else if !trackerConfig.UseDefaultRanges && len(trackerConfig.PieceSizeRanges) > 0 {
		results = append(results, ValidationResult{
			Rule:    "Recommended Piece Size",
			Status:  ValidationInfo,
			Message: "No specific recommendation for this content size, using default calculation or highest range.",
		})
	}

	return results, nil
}
