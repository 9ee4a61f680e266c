package torrentutils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anacrolix/torrent/bencode"

	"github.com/mktorlabs/mktor/internal/torrent"
)

// SaveToFile writes a torrent to a file at the specified path
func SaveToFile(t *torrent.Torrent, path string) error {
	// ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer f.Close()

	if err := t.Write(f); err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}

	return nil
}

// UpdateTrackers sets the announce URL and announce list
func UpdateTrackers(t *torrent.Torrent, trackerURL string) {
	t.Announce = trackerURL
	t.AnnounceList = [][]string{{trackerURL}}
}

// UpdateWebSeeds sets the URL list
func UpdateWebSeeds(t *torrent.Torrent, webSeeds []string) {
	t.UrlList = webSeeds
}

// UpdateComment sets the comment
func UpdateComment(t *torrent.Torrent, comment string) {
	t.Comment = comment
}

// UpdateCreatorAndDate sets the creator and creation date
func UpdateCreatorAndDate(t *torrent.Torrent, creator string, noCreator bool, noDate bool, currentTime int64) {
	if !noCreator {
		t.CreatedBy = creator
	} else {
		t.CreatedBy = ""
	}

	if !noDate {
		t.CreationDate = currentTime
	} else {
		t.CreationDate = 0
	}
}

func unmarshalInfo(t *torrent.Torrent) (*torrent.Info, error) {
	info := &torrent.Info{}
	if err := bencode.Unmarshal(t.InfoBytes, info); err != nil {
		return nil, fmt.Errorf("could not unmarshal info: %w", err)
	}
	return info, nil
}

// UpdatePrivateFlag sets the private flag in the info dictionary. Re-encoding
// the info dictionary changes the infohash.
func UpdatePrivateFlag(t *torrent.Torrent, isPrivate *bool) (bool, error) {
	if isPrivate == nil {
		return false, nil
	}

	info, err := unmarshalInfo(t)
	if err != nil {
		return false, err
	}

	// update only if different
	if info.Private == nil || *info.Private != *isPrivate {
		info.Private = isPrivate
		infoBytes, err := bencode.Marshal(info)
		if err != nil {
			return false, fmt.Errorf("could not marshal info: %w", err)
		}
		t.InfoBytes = infoBytes
		return true, nil
	}

	return false, nil
}

// UpdateSource sets the source field in the info dictionary. Re-encoding
// the info dictionary changes the infohash.
func UpdateSource(t *torrent.Torrent, source string) (bool, error) {
	if source == "" {
		return false, nil
	}

	info, err := unmarshalInfo(t)
	if err != nil {
		return false, err
	}

	if info.Source != source {
		info.Source = source
		infoBytes, err := bencode.Marshal(info)
		if err != nil {
			return false, fmt.Errorf("could not marshal info: %w", err)
		}
		t.InfoBytes = infoBytes
		return true, nil
	}

	return false, nil
}

// GetInfoName extracts the torrent name from the info dictionary
func GetInfoName(t *torrent.Torrent) (string, error) {
	info, err := unmarshalInfo(t)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}
