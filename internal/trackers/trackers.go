package trackers

import "strings"

// TrackerConfig holds tracker-specific configuration
type TrackerConfig struct {
	URLs             []string         // list of tracker URLs (partial matches) that share this config
	Source           string           // default source tag for this tracker
	PieceSizeRanges  []PieceSizeRange // custom piece size ranges for specific content sizes
	MaxPieceLength   uint             // maximum piece length exponent (2^n)
	MaxTorrentSize   uint64           // maximum .torrent file size in bytes (0 means no limit)
	UseDefaultRanges bool             // whether to fall back to default thresholds when content size is outside custom ranges
}

// PieceSizeRange defines a range of content sizes and their corresponding piece size exponent
type PieceSizeRange struct {
	MaxSize  uint64 // maximum content size in bytes for this range
	PieceExp uint   // piece size exponent (2^n)
}

// trackerConfigs lists known tracker configurations. Lookups match by substring,
// so entries hold bare domains rather than full announce URLs.
var trackerConfigs = []TrackerConfig{
	{
		URLs:           []string{"anthelion.me"},
		Source:         "ANT",
		MaxTorrentSize: 250 << 10, // 250 KiB torrent file size limit
	},
	{
		URLs:           []string{"nebulance.io"},
		Source:         "NBL",
		MaxTorrentSize: 1 << 20, // 1 MiB torrent file size limit
	},
	{
		URLs: []string{
			"hdbits.org",
			"superbits.org",
			"sptracker.cc",
		},
		MaxPieceLength:   24, // max 16 MiB pieces (2^24)
		UseDefaultRanges: true,
	},
	{
		URLs:             []string{"beyond-hd.me"},
		Source:           "BHD",
		MaxPieceLength:   24,
		UseDefaultRanges: true,
	},
	{
		URLs:   []string{"passthepopcorn.me"},
		Source: "PTP",
		PieceSizeRanges: []PieceSizeRange{
			{MaxSize: 58 << 20, PieceExp: 16},    // 64 KiB for < 58 MiB
			{MaxSize: 122 << 20, PieceExp: 17},   // 128 KiB for 58-122 MiB
			{MaxSize: 213 << 20, PieceExp: 18},   // 256 KiB for 122-213 MiB
			{MaxSize: 444 << 20, PieceExp: 19},   // 512 KiB for 213-444 MiB
			{MaxSize: 922 << 20, PieceExp: 20},   // 1 MiB for 444-922 MiB
			{MaxSize: 3977 << 20, PieceExp: 21},  // 2 MiB for 0.9-3.9 GiB
			{MaxSize: 6861 << 20, PieceExp: 22},  // 4 MiB for 3.9-6.7 GiB
			{MaxSize: 14234 << 20, PieceExp: 23}, // 8 MiB for 6.7-13.9 GiB
		},
		MaxPieceLength: 24, // 16 MiB pieces above that
	},
	{
		URLs:             []string{"morethantv.me"},
		Source:           "MTV",
		MaxPieceLength:   23, // max 8 MiB pieces (2^23)
		UseDefaultRanges: true,
	},
	{
		URLs:             []string{"empornium.sx"},
		Source:           "Emp",
		MaxPieceLength:   23,
		UseDefaultRanges: true,
	},
	{
		URLs:   []string{"gazellegames.net"},
		Source: "GGn",
		PieceSizeRanges: []PieceSizeRange{
			{MaxSize: 64 << 20, PieceExp: 15},    // 32 KiB for < 64 MiB
			{MaxSize: 128 << 20, PieceExp: 16},   // 64 KiB for 64-128 MiB
			{MaxSize: 256 << 20, PieceExp: 17},   // 128 KiB for 128-256 MiB
			{MaxSize: 512 << 20, PieceExp: 18},   // 256 KiB for 256-512 MiB
			{MaxSize: 1024 << 20, PieceExp: 19},  // 512 KiB for 512 MiB-1 GiB
			{MaxSize: 2048 << 20, PieceExp: 20},  // 1 MiB for 1-2 GiB
			{MaxSize: 4096 << 20, PieceExp: 21},  // 2 MiB for 2-4 GiB
			{MaxSize: 8192 << 20, PieceExp: 22},  // 4 MiB for 4-8 GiB
			{MaxSize: 16384 << 20, PieceExp: 23}, // 8 MiB for 8-16 GiB
			{MaxSize: 32768 << 20, PieceExp: 24}, // 16 MiB for 16-32 GiB
			{MaxSize: 65536 << 20, PieceExp: 25}, // 32 MiB for 32-64 GiB
		},
		MaxPieceLength: 26, // 64 MiB pieces above that
		MaxTorrentSize: 1 << 20,
	},
	{
		URLs:   []string{"tracker.alpharatio.cc"},
		Source: "AlphaRatio",
		PieceSizeRanges: []PieceSizeRange{
			{MaxSize: 64 << 20, PieceExp: 15},
			{MaxSize: 128 << 20, PieceExp: 16},
			{MaxSize: 256 << 20, PieceExp: 17},
			{MaxSize: 512 << 20, PieceExp: 18},
			{MaxSize: 1024 << 20, PieceExp: 19},
			{MaxSize: 2048 << 20, PieceExp: 20},
			{MaxSize: 4096 << 20, PieceExp: 21},
			{MaxSize: 8192 << 20, PieceExp: 22},
			{MaxSize: 16384 << 20, PieceExp: 23},
			{MaxSize: 32768 << 20, PieceExp: 24},
			{MaxSize: 65536 << 20, PieceExp: 25},
		},
		MaxPieceLength: 26,
		MaxTorrentSize: 2 << 20,
	},
	{
		URLs:   []string{"seedpool.org"},
		Source: "seedpool.org",
		PieceSizeRanges: []PieceSizeRange{
			{MaxSize: 64 << 20, PieceExp: 15},
			{MaxSize: 128 << 20, PieceExp: 16},
			{MaxSize: 256 << 20, PieceExp: 17},
			{MaxSize: 512 << 20, PieceExp: 18},
			{MaxSize: 1024 << 20, PieceExp: 19},
			{MaxSize: 2048 << 20, PieceExp: 20},
			{MaxSize: 4096 << 20, PieceExp: 21},
			{MaxSize: 8192 << 20, PieceExp: 22},
			{MaxSize: 16384 << 20, PieceExp: 23},
			{MaxSize: 32768 << 20, PieceExp: 24},
			{MaxSize: 65536 << 20, PieceExp: 25},
			{MaxSize: 131072 << 20, PieceExp: 26}, // 64 MiB for 64-128 GiB
		},
		MaxPieceLength: 27, // 128 MiB pieces above that
	},
	{
		URLs: []string{"norbits.net"},
		PieceSizeRanges: []PieceSizeRange{
			{MaxSize: 250 << 20, PieceExp: 18},   // 256 KiB for < 250 MiB
			{MaxSize: 1024 << 20, PieceExp: 20},  // 1 MiB for 250 MiB-1 GiB
			{MaxSize: 5120 << 20, PieceExp: 21},  // 2 MiB for 1-5 GiB
			{MaxSize: 20480 << 20, PieceExp: 22}, // 4 MiB for 5-20 GiB
			{MaxSize: 40960 << 20, PieceExp: 23}, // 8 MiB for 20-40 GiB
		},
		MaxPieceLength: 24,
	},
	{
		URLs: []string{"landof.tv"},
		PieceSizeRanges: []PieceSizeRange{
			{MaxSize: 32 << 20, PieceExp: 15},
			{MaxSize: 62 << 20, PieceExp: 16},
			{MaxSize: 125 << 20, PieceExp: 17},
			{MaxSize: 250 << 20, PieceExp: 18},
			{MaxSize: 500 << 20, PieceExp: 19},
			{MaxSize: 1000 << 20, PieceExp: 20},
			{MaxSize: 1945 << 20, PieceExp: 21},
			{MaxSize: 3906 << 20, PieceExp: 22},
			{MaxSize: 7810 << 20, PieceExp: 23},
		},
		MaxPieceLength: 24,
	},
	{
		URLs: []string{
			"torrent-syndikat.org",
			"tee-stube.org",
		},
		PieceSizeRanges: []PieceSizeRange{
			{MaxSize: 250 << 20, PieceExp: 20},
			{MaxSize: 1024 << 20, PieceExp: 20},
			{MaxSize: 5120 << 20, PieceExp: 20},
			{MaxSize: 20480 << 20, PieceExp: 22},
			{MaxSize: 51200 << 20, PieceExp: 23},
		},
		MaxPieceLength: 24,
	},
	{
		URLs:   []string{"lst.gg"},
		Source: "lst.gg",
		PieceSizeRanges: []PieceSizeRange{
			{MaxSize: 1024 << 20, PieceExp: 20},
			{MaxSize: 4096 << 20, PieceExp: 21},
			{MaxSize: 12288 << 20, PieceExp: 22},
			{MaxSize: 20480 << 20, PieceExp: 23},
		},
		MaxPieceLength: 24,
	},
	{
		URLs:   []string{"aither.cc"},
		Source: "Aither",
	},
	{
		URLs:   []string{"upload.cx"},
		Source: "ULCX",
	},
	{
		URLs:   []string{"capybarabr.com"},
		Source: "CapybaraBR",
	},
	{
		URLs:   []string{"hawke.uno"},
		Source: "HUNO",
	},
}

// FindTrackerConfig returns the config for a given tracker URL, or nil if unknown
func FindTrackerConfig(trackerURL string) *TrackerConfig {
	for i := range trackerConfigs {
		for _, url := range trackerConfigs[i].URLs {
			if strings.Contains(trackerURL, url) {
				return &trackerConfigs[i]
			}
		}
	}
	return nil
}

// FindTrackerConfigAny scans announce URLs in order and returns the first known config
func FindTrackerConfigAny(trackerURLs []string) *TrackerConfig {
	for _, u := range trackerURLs {
		if config := FindTrackerConfig(u); config != nil {
			return config
		}
	}
	return nil
}

// GetTrackerMaxPieceLength returns the maximum piece length exponent for a tracker if known.
// This is a hard limit that will not be exceeded.
func GetTrackerMaxPieceLength(trackerURL string) (uint, bool) {
	if config := FindTrackerConfig(trackerURL); config != nil {
		return config.MaxPieceLength, config.MaxPieceLength > 0
	}
	return 0, false
}

// GetTrackerPieceSizeExp returns the recommended piece size exponent for a given content size and tracker
func GetTrackerPieceSizeExp(trackerURL string, contentSize uint64) (uint, bool) {
	if config := FindTrackerConfig(trackerURL); config != nil {
		return config.PieceSizeExp(contentSize)
	}
	return 0, false
}

// PieceSizeExp returns the piece size exponent this config prescribes for a content size.
// When the size falls outside all custom ranges, the largest defined exponent applies
// unless the config opts into the default thresholds.
func (c *TrackerConfig) PieceSizeExp(contentSize uint64) (uint, bool) {
	if len(c.PieceSizeRanges) == 0 {
		return 0, false
	}
	for _, r := range c.PieceSizeRanges {
		if contentSize <= r.MaxSize {
			return r.PieceExp, true
		}
	}
	if !c.UseDefaultRanges {
		if c.MaxPieceLength > 0 {
			return c.MaxPieceLength, true
		}
		return c.PieceSizeRanges[len(c.PieceSizeRanges)-1].PieceExp, true
	}
	return 0, false
}

// GetTrackerMaxTorrentSize returns the maximum allowed .torrent file size for a tracker if known
func GetTrackerMaxTorrentSize(trackerURL string) (uint64, bool) {
	if config := FindTrackerConfig(trackerURL); config != nil {
		return config.MaxTorrentSize, config.MaxTorrentSize > 0
	}
	return 0, false
}

// GetTrackerSource returns the default source tag for a tracker if it prescribes one
func GetTrackerSource(trackerURL string) (string, bool) {
	if config := FindTrackerConfig(trackerURL); config != nil {
		return config.Source, config.Source != ""
	}
	return "", false
}
