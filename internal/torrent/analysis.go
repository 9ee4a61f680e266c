package torrent

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SeasonPackInfo describes what the episode scan found in a directory.
type SeasonPackInfo struct {
	IsSeasonPack    bool
	Season          int
	Episodes        []int
	MissingEpisodes []int
	MaxEpisode      int
	VideoFileCount  int
	IsSuspicious    bool
}

var (
	seasonDirPattern  = regexp.MustCompile(`(?i)\bS(?:eason[ ._-]?)?(\d{1,2})\b`)
	episodePattern    = regexp.MustCompile(`(?i)\bS(\d{1,2})[ ._-]?E(\d{1,3})\b`)
	altEpisodePattern = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
)

var videoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".ts":   true,
	".m2ts": true,
	".wmv":  true,
	".mov":  true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
	".vob":  true,
}

// AnalyzeSeasonPack checks whether a directory looks like a TV season pack
// and reports gaps in the episode numbering. Directories named for a single
// episode are left alone.
func AnalyzeSeasonPack(name string, files []fileEntry) *SeasonPackInfo {
	info := &SeasonPackInfo{}

	m := seasonDirPattern.FindStringSubmatch(name)
	if m == nil {
		return info
	}
	if episodePattern.MatchString(name) {
		return info
	}

	info.IsSeasonPack = true
	info.Season, _ = strconv.Atoi(m[1])

	seen := make(map[int]bool)
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.relPath))
		if !videoExtensions[ext] {
			continue
		}
		info.VideoFileCount++

		base := filepath.Base(f.relPath)
		em := episodePattern.FindStringSubmatch(base)
		if em == nil {
			em = altEpisodePattern.FindStringSubmatch(base)
		}
		if em == nil {
			continue
		}

		ep, _ := strconv.Atoi(em[2])
		if ep > 0 && !seen[ep] {
			seen[ep] = true
			info.Episodes = append(info.Episodes, ep)
		}
	}

	sort.Ints(info.Episodes)
	if n := len(info.Episodes); n > 0 {
		info.MaxEpisode = info.Episodes[n-1]
	}

	for ep := 1; ep <= info.MaxEpisode; ep++ {
		if !seen[ep] {
			info.MissingEpisodes = append(info.MissingEpisodes, ep)
		}
	}

	// videos without any episode numbering inside a season folder usually
	// mean the pack was renamed or truncated
	if info.VideoFileCount > 0 && len(info.Episodes) == 0 {
		info.IsSuspicious = true
	}
	if info.VideoFileCount == 1 {
		info.IsSuspicious = true
	}

	return info
}
