package trackers

import "testing"

func TestFindTrackerConfig(t *testing.T) {
	tests := []struct {
		name       string
		trackerURL string
		wantFound  bool
		wantSource string
	}{
		{
			name:       "known tracker full announce",
			trackerURL: "https://passthepopcorn.me/announce/abcdef",
			wantFound:  true,
			wantSource: "PTP",
		},
		{
			name:       "known tracker http announce.php",
			trackerURL: "http://gazellegames.net/announce.php?passkey=123",
			wantFound:  true,
			wantSource: "GGn",
		},
		{
			name:       "known tracker bare domain",
			trackerURL: "anthelion.me",
			wantFound:  true,
			wantSource: "ANT",
		},
		{
			name:       "grouped tracker second domain",
			trackerURL: "https://superbits.org/announce",
			wantFound:  true,
			wantSource: "",
		},
		{
			name:       "unknown tracker",
			trackerURL: "https://example.com/announce",
			wantFound:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := FindTrackerConfig(tt.trackerURL)
			if (config != nil) != tt.wantFound {
				t.Fatalf("FindTrackerConfig(%q) found = %v, want %v", tt.trackerURL, config != nil, tt.wantFound)
			}
			if config != nil && config.Source != tt.wantSource {
				t.Errorf("FindTrackerConfig(%q) source = %q, want %q", tt.trackerURL, config.Source, tt.wantSource)
			}
		})
	}
}

func TestFindTrackerConfigAny(t *testing.T) {
	config := FindTrackerConfigAny([]string{
		"https://example.com/announce",
		"https://morethantv.me/announce/xyz",
		"https://passthepopcorn.me/announce",
	})
	if config == nil {
		t.Fatal("expected a config for announce list containing known trackers")
	}
	if config.Source != "MTV" {
		t.Errorf("expected first matching config (MTV), got source %q", config.Source)
	}

	if config := FindTrackerConfigAny([]string{"https://example.com/announce"}); config != nil {
		t.Errorf("expected no config for unknown announce list, got %+v", config)
	}
}

func TestGetTrackerPieceSizeExp(t *testing.T) {
	tests := []struct {
		name        string
		trackerURL  string
		contentSize uint64
		wantExp     uint
		wantOK      bool
	}{
		{
			name:        "ptp small content",
			trackerURL:  "https://passthepopcorn.me/announce",
			contentSize: 50 << 20,
			wantExp:     16,
			wantOK:      true,
		},
		{
			name:        "ptp range boundary inclusive",
			trackerURL:  "https://passthepopcorn.me/announce",
			contentSize: 58 << 20,
			wantExp:     16,
			wantOK:      true,
		},
		{
			name:        "ptp just above boundary",
			trackerURL:  "https://passthepopcorn.me/announce",
			contentSize: 58<<20 + 1,
			wantExp:     17,
			wantOK:      true,
		},
		{
			name:        "ptp above all ranges uses max",
			trackerURL:  "https://passthepopcorn.me/announce",
			contentSize: 20000 << 20,
			wantExp:     24,
			wantOK:      true,
		},
		{
			name:        "ggn huge content allows 64 MiB pieces",
			trackerURL:  "https://gazellegames.net/announce",
			contentSize: 200000 << 20,
			wantExp:     26,
			wantOK:      true,
		},
		{
			name:        "hdbits has no custom ranges",
			trackerURL:  "https://hdbits.org/announce",
			contentSize: 1 << 30,
			wantOK:      false,
		},
		{
			name:        "unknown tracker",
			trackerURL:  "https://example.com/announce",
			contentSize: 1 << 30,
			wantOK:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, ok := GetTrackerPieceSizeExp(tt.trackerURL, tt.contentSize)
			if ok != tt.wantOK {
				t.Fatalf("GetTrackerPieceSizeExp() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && exp != tt.wantExp {
				t.Errorf("GetTrackerPieceSizeExp() = %d, want %d", exp, tt.wantExp)
			}
		})
	}
}

func TestGetTrackerMaxPieceLength(t *testing.T) {
	if max, ok := GetTrackerMaxPieceLength("https://morethantv.me/announce"); !ok || max != 23 {
		t.Errorf("morethantv max piece length = %d, %v; want 23, true", max, ok)
	}
	if max, ok := GetTrackerMaxPieceLength("https://seedpool.org/announce"); !ok || max != 27 {
		t.Errorf("seedpool max piece length = %d, %v; want 27, true", max, ok)
	}
	if _, ok := GetTrackerMaxPieceLength("https://anthelion.me/announce"); ok {
		t.Error("anthelion has no piece length cap, expected ok=false")
	}
}

func TestGetTrackerMaxTorrentSize(t *testing.T) {
	if size, ok := GetTrackerMaxTorrentSize("https://anthelion.me/announce"); !ok || size != 250<<10 {
		t.Errorf("anthelion max torrent size = %d, %v; want %d, true", size, ok, 250<<10)
	}
	if size, ok := GetTrackerMaxTorrentSize("https://gazellegames.net/announce"); !ok || size != 1<<20 {
		t.Errorf("gazellegames max torrent size = %d, %v; want %d, true", size, ok, 1<<20)
	}
	if _, ok := GetTrackerMaxTorrentSize("https://hdbits.org/announce"); ok {
		t.Error("hdbits has no torrent size cap, expected ok=false")
	}
}

func TestGetTrackerSource(t *testing.T) {
	if source, ok := GetTrackerSource("https://hawke.uno/announce/key"); !ok || source != "HUNO" {
		t.Errorf("hawke source = %q, %v; want HUNO, true", source, ok)
	}
	if _, ok := GetTrackerSource("https://norbits.net/announce"); ok {
		t.Error("norbits prescribes no source tag, expected ok=false")
	}
}

func TestTrackerConfigIntegrity(t *testing.T) {
	for _, config := range trackerConfigs {
		if len(config.URLs) == 0 {
			t.Fatalf("config %+v has no URLs", config)
		}
		var lastMax uint64
		for _, r := range config.PieceSizeRanges {
			if r.MaxSize <= lastMax {
				t.Errorf("config %v has non-increasing range boundary %d", config.URLs, r.MaxSize)
			}
			lastMax = r.MaxSize
		}
		if len(config.PieceSizeRanges) > 0 && config.MaxPieceLength == 0 {
			t.Errorf("config %v has custom ranges but no max piece length", config.URLs)
		}
	}
}
