package torrent

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/anacrolix/torrent/bencode"
)

// FileDetail holds structured information about a single file within a torrent.
type FileDetail struct {
	Path            string `json:"path"`
	Length          int64  `json:"length"`
	LengthFormatted string `json:"lengthFormatted"`
}

// TorrentInspectJSON holds all the structured information for JSON output.
type TorrentInspectJSON struct {
	Name                 string                 `json:"name"`
	InfoHash             string                 `json:"infoHash,omitempty"`
	InfoHashV2           string                 `json:"infoHashV2,omitempty"`
	MetaVersion          int64                  `json:"metaVersion,omitempty"`
	Size                 int64                  `json:"size"`
	SizeFormatted        string                 `json:"sizeFormatted"`
	PieceLength          int64                  `json:"pieceLength"`
	PieceLengthFormatted string                 `json:"pieceLengthFormatted"`
	NumPieces            int                    `json:"numPieces"`
	PieceLayerCount      int                    `json:"pieceLayerCount,omitempty"`
	IsPrivate            *bool                  `json:"isPrivate,omitempty"`
	Source               string                 `json:"source,omitempty"`
	Comment              string                 `json:"comment,omitempty"`
	CreatedBy            string                 `json:"createdBy,omitempty"`
	CreationDate         *int64                 `json:"creationDate,omitempty"`
	MagnetLink           string                 `json:"magnetLink,omitempty"`
	Trackers             [][]string             `json:"trackers,omitempty"`
	WebSeeds             []string               `json:"webSeeds,omitempty"`
	Files                []FileDetail           `json:"files,omitempty"`
	AdditionalRootMeta   map[string]interface{} `json:"additionalRootMeta,omitempty"`
	AdditionalInfoMeta   map[string]interface{} `json:"additionalInfoMeta,omitempty"`
	ValidationResults    []ValidationResult     `json:"validationResults,omitempty"`
}

// GenerateInspectJSON gathers torrent information and populates the TorrentInspectJSON struct.
func GenerateInspectJSON(t *Torrent, info *Info, rawTorrentBytes []byte, verbose bool, validationResults []ValidationResult) (*TorrentInspectJSON, error) {
	formatter := NewFormatter(verbose)
	v1, v2 := t.InfoHashes()

	output := &TorrentInspectJSON{
		Name:                 info.Name,
		InfoHash:             v1,
		InfoHashV2:           v2,
		MetaVersion:          info.MetaVersion,
		Size:                 info.TotalLength(),
		SizeFormatted:        formatter.FormatBytes(info.TotalLength()),
		PieceLength:          info.PieceLength,
		PieceLengthFormatted: formatter.FormatBytes(info.PieceLength),
		NumPieces:            info.NumPieces(),
		PieceLayerCount:      len(t.PieceLayers),
		IsPrivate:            info.Private,
		Source:               info.Source,
		Comment:              t.Comment,
		CreatedBy:            t.CreatedBy,
		MagnetLink:           t.MagnetLink(),
		Trackers:             t.AnnounceList,
		WebSeeds:             t.UrlList,
		ValidationResults:    validationResults,
	}

	if len(output.Trackers) == 0 && t.Announce != "" {
		output.Trackers = [][]string{{t.Announce}}
	}

	if t.CreationDate != 0 {
		ts := t.CreationDate
		output.CreationDate = &ts
	}

	switch {
	case len(info.Files) > 0:
		for _, f := range info.Files {
			if f.Attr == "p" {
				continue
			}
			output.Files = append(output.Files, FileDetail{
				Path:            filepath.Join(f.Path...),
				Length:          f.Length,
				LengthFormatted: formatter.FormatBytes(f.Length),
			})
		}
	case info.Length != nil:
		output.Files = []FileDetail{
			{
				Path:            info.Name,
				Length:          *info.Length,
				LengthFormatted: formatter.FormatBytes(*info.Length),
			},
		}
	case len(info.FileTree) > 0:
		for _, e := range info.FileTreeEntries() {
			path := strings.Join(e.Path, "/")
			if path == "" {
				path = info.Name
			}
			output.Files = append(output.Files, FileDetail{
				Path:            path,
				Length:          e.Length,
				LengthFormatted: formatter.FormatBytes(e.Length),
			})
		}
	}

	if verbose {
		rootMap := make(map[string]interface{})
		if err := bencode.Unmarshal(rawTorrentBytes, &rootMap); err == nil {
			standardRoot := map[string]bool{
				"announce": true, "announce-list": true, "comment": true,
				"created by": true, "creation date": true, "info": true,
				"url-list": true, "nodes": true, "piece layers": true,
			}
			output.AdditionalRootMeta = make(map[string]interface{})
			for k, v := range rootMap {
				if !standardRoot[k] {
					output.AdditionalRootMeta[k] = v
				}
			}
			if len(output.AdditionalRootMeta) == 0 {
				output.AdditionalRootMeta = nil
			}
		}

		infoMap := make(map[string]interface{})
		if err := bencode.Unmarshal(t.InfoBytes, &infoMap); err == nil {
			standardInfo := map[string]bool{
				"name": true, "piece length": true, "pieces": true,
				"files": true, "length": true, "private": true,
				"source": true, "file tree": true, "meta version": true,
			}
			output.AdditionalInfoMeta = make(map[string]interface{})
			for k, v := range infoMap {
				if !standardInfo[k] {
					output.AdditionalInfoMeta[k] = v
				}
			}
			if len(output.AdditionalInfoMeta) == 0 {
				output.AdditionalInfoMeta = nil
			}
		}
	}

	return output, nil
}

// ToJSON marshals the TorrentInspectJSON struct into a JSON string.
func (t *TorrentInspectJSON) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
