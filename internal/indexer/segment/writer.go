package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
)

// MagicBytes identifies a navigator snapshot file. It is stored big-endian
// so the file starts with "BCIX"; every other field is little-endian.
const (
	MagicBytes    uint32 = 0x42434958
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// SnapshotHeader is the 64-byte header written at the start of every
// snapshot. Offsets are absolute.
type SnapshotHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	PostOffset int64
	PostSize   int64
	DictOffset int64
	DictSize   int64
}

// DictEntry maps a term to its postings offset (relative to the postings
// section), length, and document frequency.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// docTable is the JSON section after the dictionary. It carries everything
// needed to rebuild the Index besides postings.
type docTable struct {
	Tokenizer  string           `json:"tokenizer"`
	Generation string           `json:"generation"`
	BuiltAt    time.Time        `json:"built_at"`
	Documents  []index.Document `json:"documents"`
}

// Writer serialises index snapshots into files under one directory.
type Writer struct {
	dataDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically replaces dataDir/name with a snapshot of ix. It writes to
// a .tmp file first and renames on success, so readers never see a partial
// file.
//
// Layout: header | postings | dictionary | doc table | footer. The footer
// holds a CRC32 of everything between header and footer.
func (w *Writer) Write(ix *index.Index, name string) (string, error) {
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp snapshot file: %w", err)
	}
	committed := false
	defer func() {
		f.Close()
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	entries := ix.Entries()
	header := SnapshotHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(ix.Len()),
		CreatedAt: time.Now().Unix(),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	crc := crc32.NewIEEE()
	write := func(p []byte) error {
		if _, err := f.Write(p); err != nil {
			return err
		}
		crc.Write(p)
		return nil
	}

	header.PostOffset = int64(HeaderSize)
	var postSize int64
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if err := write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: postSize,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		postSize += int64(len(postingsData))
	}
	header.PostSize = postSize

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = header.PostOffset + postSize
	header.DictSize = int64(len(dictData))
	if err := write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}

	docsData, err := json.Marshal(docTable{
		Tokenizer:  ix.Tokenizer().Fingerprint(),
		Generation: ix.Generation(),
		BuiltAt:    ix.BuiltAt(),
		Documents:  ix.Documents(),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling document table: %w", err)
	}
	docsOffset := header.DictOffset + header.DictSize
	if err := write(docsData); err != nil {
		return "", fmt.Errorf("writing document table: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], header.DocCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(docsOffset))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(docsData)))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming snapshot file: %w", err)
	}
	committed = true
	return finalPath, nil
}

func encodeHeader(h SnapshotHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DictSize))
	return b
}

func decodeHeader(b []byte) SnapshotHeader {
	return SnapshotHeader{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[16:24])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[24:32])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[32:40])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[40:48])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[48:56])),
	}
}
