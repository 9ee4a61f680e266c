package torrent

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	infohash_v2 "github.com/anacrolix/torrent/types/infohash-v2"
)

// FileInfo is one entry of the info dictionary's "files" list.
// Padding files carry the "p" attribute per BEP 47.
type FileInfo struct {
	Attr   string   `bencode:"attr,omitempty"`
	Length int64    `bencode:"length"`
	Path   []string `bencode:"path"`
}

// Info models the torrent info dictionary across BEP 3 and BEP 52.
// The bencode encoder writes dictionary keys in sorted order, so the
// serialized form is canonical regardless of field declaration order.
type Info struct {
	FileTree    map[string]interface{} `bencode:"file tree,omitempty"`
	Files       []FileInfo             `bencode:"files,omitempty"`
	Length      *int64                 `bencode:"length,omitempty"`
	MetaVersion int64                  `bencode:"meta version,omitempty"`
	Name        string                 `bencode:"name"`
	PieceLength int64                  `bencode:"piece length"`
	Pieces      []byte                 `bencode:"pieces,omitempty"`
	Private     *bool                  `bencode:"private,omitempty"`
	Source      string                 `bencode:"source,omitempty"`
	CrossSeed   string                 `bencode:"x_cross_seed,omitempty"`
}

// Meta models the top-level torrent dictionary. InfoBytes holds the raw
// bencoded info dictionary so hashing and re-encoding operate on the exact
// bytes read from or written to disk.
type Meta struct {
	Announce     string            `bencode:"announce,omitempty"`
	AnnounceList [][]string        `bencode:"announce-list,omitempty"`
	Comment      string            `bencode:"comment,omitempty"`
	CreatedBy    string            `bencode:"created by,omitempty"`
	CreationDate int64             `bencode:"creation date,omitempty,ignore_unmarshal_type_error"`
	Encoding     string            `bencode:"encoding,omitempty"`
	InfoBytes    bencode.Bytes     `bencode:"info"`
	Nodes        []metainfo.Node   `bencode:"nodes,omitempty"`
	PieceLayers  map[string]string `bencode:"piece layers,omitempty"`
	UrlList      []string          `bencode:"url-list,omitempty"`
}

// Torrent wraps Meta with the accessors the CLI works against
type Torrent struct {
	*Meta
}

// LoadFromFile reads and parses a torrent file
func LoadFromFile(path string) (*Torrent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open torrent file: %w", err)
	}
	defer f.Close()

	meta := &Meta{}
	if err := bencode.NewDecoder(f).Decode(meta); err != nil {
		return nil, fmt.Errorf("could not parse torrent file: %w", err)
	}
	return &Torrent{Meta: meta}, nil
}

// Write encodes the torrent to w
func (m *Meta) Write(w io.Writer) error {
	return bencode.NewEncoder(w).Encode(m)
}

// MarshalBytes returns the full bencoded torrent
func (m *Meta) MarshalBytes() ([]byte, error) {
	data, err := bencode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("could not encode torrent: %w", err)
	}
	return data, nil
}

// HashInfoBytes returns the SHA-1 hash of the raw info dictionary
func (m *Meta) HashInfoBytes() metainfo.Hash {
	return metainfo.HashBytes(m.InfoBytes)
}

// HashInfoBytesV2 returns the SHA-256 hash of the raw info dictionary
func (m *Meta) HashInfoBytesV2() infohash_v2.T {
	return infohash_v2.HashBytes(m.InfoBytes)
}

// GetInfo parses the info dictionary, returning nil when it cannot be decoded
func (t *Torrent) GetInfo() *Info {
	info := &Info{}
	if err := bencode.Unmarshal(t.InfoBytes, info); err != nil {
		return nil
	}
	return info
}

// InfoHashes returns the hex v1 and v2 infohashes that apply to this torrent.
// v1 is empty for v2-only torrents, v2 is empty unless the torrent declares
// meta version 2.
func (t *Torrent) InfoHashes() (v1 string, v2 string) {
	info := t.GetInfo()
	if info == nil {
		return "", ""
	}
	if info.MetaVersion != 2 || len(info.Pieces) > 0 {
		v1 = t.HashInfoBytes().HexString()
	}
	if info.MetaVersion == 2 {
		h := t.HashInfoBytesV2()
		v2 = h.HexString()
	}
	return v1, v2
}

// AnnounceURLs returns every distinct announce URL, the scalar announce
// field first and announce-list tiers after, preserving order.
func (t *Torrent) AnnounceURLs() []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	add(t.Announce)
	for _, tier := range t.AnnounceList {
		for _, u := range tier {
			add(u)
		}
	}
	return urls
}

// MagnetLink derives a magnet URI from the torrent. The display name comes
// first, then the v1 and v2 exact topics as available, then every tracker.
func (t *Torrent) MagnetLink() string {
	info := t.GetInfo()
	if info == nil {
		return ""
	}
	v1, v2 := t.InfoHashes()

	var b strings.Builder
	b.WriteString("magnet:?dn=")
	b.WriteString(url.QueryEscape(info.Name))
	if v1 != "" {
		b.WriteString("&xt=urn:btih:")
		b.WriteString(v1)
	}
	if v2 != "" {
		// 1220 is the multihash prefix for a 32 byte SHA-256 digest
		b.WriteString("&xt=urn:btmh:1220")
		b.WriteString(v2)
	}
	for _, tr := range t.AnnounceURLs() {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}

// TotalLength returns the content size in bytes, excluding padding files
func (i *Info) TotalLength() int64 {
	if i.Length != nil {
		return *i.Length
	}
	if len(i.Files) > 0 {
		var total int64
		for _, f := range i.Files {
			if f.Attr != "p" {
				total += f.Length
			}
		}
		return total
	}
	var total int64
	for _, e := range i.FileTreeEntries() {
		total += e.Length
	}
	return total
}

// NumPieces returns the number of v1 pieces
func (i *Info) NumPieces() int {
	return len(i.Pieces) / 20
}

// IsDir reports whether the torrent describes a directory
func (i *Info) IsDir() bool {
	if len(i.Files) > 0 {
		return true
	}
	if i.Length != nil {
		return false
	}
	if len(i.FileTree) > 0 {
		// a v2-only single file keys its node under the empty name
		if len(i.FileTree) == 1 {
			if _, ok := i.FileTree[""]; ok {
				return false
			}
		}
		return true
	}
	return false
}

// FileTreeEntry is one file of the v2 file tree
type FileTreeEntry struct {
	Path       []string
	Length     int64
	PiecesRoot string
}

// FileTreeEntries flattens the v2 file tree into leaves in tree order.
// A single-file tree yields one entry with an empty path.
func (i *Info) FileTreeEntries() []FileTreeEntry {
	var entries []FileTreeEntry
	walkFileTree(i.FileTree, nil, &entries)
	return entries
}

func walkFileTree(node map[string]interface{}, prefix []string, entries *[]FileTreeEntry) {
	names := make([]string, 0, len(node))
	for name := range node {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child, ok := node[name].(map[string]interface{})
		if !ok {
			continue
		}
		if meta, ok := fileTreeLeaf(child); ok {
			path := append(append([]string{}, prefix...), name)
			if name == "" && len(prefix) == 0 {
				path = nil
			}
			entry := FileTreeEntry{Path: path}
			if length, ok := meta["length"].(int64); ok {
				entry.Length = length
			}
			if root, ok := meta["pieces root"].(string); ok {
				entry.PiecesRoot = root
			}
			*entries = append(*entries, entry)
			continue
		}
		walkFileTree(child, append(append([]string{}, prefix...), name), entries)
	}
}

// fileTreeLeaf unwraps the {"": metadata} file node shape
func fileTreeLeaf(node map[string]interface{}) (map[string]interface{}, bool) {
	if len(node) != 1 {
		return nil, false
	}
	meta, ok := node[""].(map[string]interface{})
	if !ok {
		return nil, false
	}
	if _, ok := meta["length"]; !ok {
		return nil, false
	}
	return meta, true
}
