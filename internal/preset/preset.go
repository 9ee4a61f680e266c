package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mktorlabs/mktor/internal/torrent"
	"github.com/mktorlabs/mktor/internal/torrentutils"
	"github.com/mktorlabs/mktor/internal/utils"
)

// Config represents the YAML configuration for torrent creation presets
type Config struct {
	Version int                `yaml:"version"`
	Default *Options           `yaml:"default"`
	Presets map[string]Options `yaml:"presets"`
}

// Options represents the options for a single preset. Booleans are pointers
// so a preset can override the default block in either direction, and so an
// absent field is distinguishable from an explicit false.
type Options struct {
	Trackers        []string `yaml:"trackers"`
	WebSeeds        []string `yaml:"webseeds"`
	Private         *bool    `yaml:"private"`
	PieceLength     uint     `yaml:"piece_length"`
	MaxPieceLength  uint     `yaml:"max_piece_length"`
	Comment         string   `yaml:"comment"`
	Source          string   `yaml:"source"`
	NoDate          *bool    `yaml:"no_date"`
	NoCreator       *bool    `yaml:"no_creator"`
	SkipPrefix      *bool    `yaml:"skip_prefix"`
	Entropy         *bool    `yaml:"entropy"`
	Mode            string   `yaml:"mode"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	IncludePatterns []string `yaml:"include_patterns"`
}

// FindPresetFile searches for a preset file in known locations
func FindPresetFile(explicitPath string) (string, error) {
	// check known locations in order
	locations := []string{
		explicitPath,   // explicitly specified file
		"presets.yaml", // current directory
	}

	// add user home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".config", "mktor", "presets.yaml"), // ~/.config/mktor/
			filepath.Join(home, ".mktor", "presets.yaml"),           // ~/.mktor/
		)
	}

	// find first existing preset file
	for _, loc := range locations {
		if loc == "" {
			continue
		}
		if _, err := os.Stat(loc); err == nil {
			return loc, nil
		}
	}

	return "", fmt.Errorf("could not find preset file in known locations")
}

// Load loads presets from a config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read preset config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("could not parse preset config: %w", err)
	}

	if config.Version != 1 {
		return nil, fmt.Errorf("unsupported preset config version: %d", config.Version)
	}

	if len(config.Presets) == 0 {
		return nil, fmt.Errorf("no presets defined in config")
	}

	return &config, nil
}

// GetPreset returns a preset by name, merged over the default block
func (c *Config) GetPreset(name string) (*Options, error) {
	preset, ok := c.Presets[name]
	if !ok {
		return nil, fmt.Errorf("preset %q not found", name)
	}

	if c.Default == nil {
		return &preset, nil
	}

	merged := *c.Default
	if len(preset.Trackers) > 0 {
		merged.Trackers = preset.Trackers
	}
	if len(preset.WebSeeds) > 0 {
		merged.WebSeeds = preset.WebSeeds
	}
	if preset.Private != nil {
		merged.Private = preset.Private
	}
	if preset.PieceLength != 0 {
		merged.PieceLength = preset.PieceLength
	}
	if preset.MaxPieceLength != 0 {
		merged.MaxPieceLength = preset.MaxPieceLength
	}
	if preset.Comment != "" {
		merged.Comment = preset.Comment
	}
	if preset.Source != "" {
		merged.Source = preset.Source
	}
	if preset.NoDate != nil {
		merged.NoDate = preset.NoDate
	}
	if preset.NoCreator != nil {
		merged.NoCreator = preset.NoCreator
	}
	if preset.SkipPrefix != nil {
		merged.SkipPrefix = preset.SkipPrefix
	}
	if preset.Entropy != nil {
		merged.Entropy = preset.Entropy
	}
	if preset.Mode != "" {
		merged.Mode = preset.Mode
	}
	if len(preset.ExcludePatterns) > 0 {
		merged.ExcludePatterns = preset.ExcludePatterns
	}
	if len(preset.IncludePatterns) > 0 {
		merged.IncludePatterns = preset.IncludePatterns
	}

	return &merged, nil
}

// ApplyToTorrent applies the preset's metadata fields to a loaded torrent,
// returning whether anything changed. Piece length and content selection
// fields only affect creation and are ignored here.
func (o *Options) ApplyToTorrent(t *torrent.Torrent) (bool, error) {
	wasModified := false

	if len(o.Trackers) > 0 {
		t.Announce = o.Trackers[0]
		t.AnnounceList = [][]string{o.Trackers}
		wasModified = true
	}

	if len(o.WebSeeds) > 0 {
		t.UrlList = o.WebSeeds
		wasModified = true
	}

	if o.Comment != "" && t.Comment != o.Comment {
		t.Comment = o.Comment
		wasModified = true
	}

	if o.Private != nil {
		modified, err := torrentutils.UpdatePrivateFlag(t, o.Private)
		if err != nil {
			return wasModified, err
		}
		if modified {
			wasModified = true
		}
	}

	if o.Source != "" {
		modified, err := torrentutils.UpdateSource(t, o.Source)
		if err != nil {
			return wasModified, err
		}
		if modified {
			wasModified = true
		}
	}

	return wasModified, nil
}

// GenerateOutputPath builds the output path for a modified torrent file. An
// explicit pattern wins, then a tracker domain prefix with the torrent's
// name, then the original name with a -[preset] or -modified suffix.
func GenerateOutputPath(originalPath, outputDir, presetName, outputPattern, trackerURL, torrentName string) string {
	dir := filepath.Dir(originalPath)
	if outputDir != "" {
		dir = outputDir
	}

	if outputPattern != "" {
		base := outputPattern
		if !strings.HasSuffix(base, ".torrent") {
			base += ".torrent"
		}
		return filepath.Join(dir, base)
	}

	if trackerURL != "" {
		name := torrentName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(originalPath), filepath.Ext(originalPath))
		}
		return filepath.Join(dir, utils.GetDomainPrefix(trackerURL)+"_"+utils.SanitizeFilename(name)+".torrent")
	}

	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	suffix := "-modified"
	if presetName != "" {
		suffix = "-" + presetName
	}

	return filepath.Join(dir, name+suffix+ext)
}
