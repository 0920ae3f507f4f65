package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

// Reader gives access to a verified snapshot file. Postings are read
// lazily; the dictionary and document table are held in memory.
type Reader struct {
	file     *os.File
	filePath string
	header   SnapshotHeader
	dict     []DictEntry
	docs     docTable
}

// OpenReader opens path and checks magic, version, section bounds and the
// footer checksum before anything is parsed.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	r, err := openReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func openReader(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}
	size := info.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("%w: %s is too short (%d bytes)", apperrors.ErrSnapshotCorrupt, path, size)
	}

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrSnapshotCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", apperrors.ErrSnapshotMismatch, header.Version, FormatVersion)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	checksum := binary.LittleEndian.Uint32(footer[0:4])
	docsOffset := int64(binary.LittleEndian.Uint64(footer[8:16]))
	docsSize := int64(binary.LittleEndian.Uint64(footer[16:24]))

	bodyEnd := size - int64(FooterSize)
	if header.PostSize < 0 || header.DictSize < 0 || docsOffset < 0 || docsSize < 0 {
		return nil, fmt.Errorf("%w: negative section size", apperrors.ErrSnapshotCorrupt)
	}
	if header.PostOffset != int64(HeaderSize) ||
		header.DictOffset != header.PostOffset+header.PostSize ||
		docsOffset != header.DictOffset+header.DictSize ||
		docsOffset+docsSize != bodyEnd {
		return nil, fmt.Errorf("%w: section bounds do not line up", apperrors.ErrSnapshotCorrupt)
	}

	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, io.NewSectionReader(f, int64(HeaderSize), bodyEnd-int64(HeaderSize))); err != nil {
		return nil, fmt.Errorf("checksumming snapshot: %w", err)
	}
	if crc.Sum32() != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", apperrors.ErrSnapshotCorrupt)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("%w: parsing dictionary: %v", apperrors.ErrSnapshotCorrupt, err)
	}
	if len(dict) != int(header.TermCount) {
		return nil, fmt.Errorf("%w: dictionary has %d terms, header says %d", apperrors.ErrSnapshotCorrupt, len(dict), header.TermCount)
	}

	docsBytes := make([]byte, docsSize)
	if _, err := f.ReadAt(docsBytes, docsOffset); err != nil {
		return nil, fmt.Errorf("reading document table: %w", err)
	}
	var docs docTable
	if err := json.Unmarshal(docsBytes, &docs); err != nil {
		return nil, fmt.Errorf("%w: parsing document table: %v", apperrors.ErrSnapshotCorrupt, err)
	}
	if len(docs.Documents) != int(header.DocCount) {
		return nil, fmt.Errorf("%w: document table has %d entries, header says %d", apperrors.ErrSnapshotCorrupt, len(docs.Documents), header.DocCount)
	}

	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		docs:     docs,
	}, nil
}

// Search returns the stored postings for an already normalised term.
func (r *Reader) Search(term string) (index.PostingList, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	return r.postings(r.dict[idx])
}

func (r *Reader) postings(entry DictEntry) (index.PostingList, error) {
	if entry.PostOffset < 0 || entry.PostLen < 0 || entry.PostOffset+int64(entry.PostLen) > r.header.PostSize {
		return nil, fmt.Errorf("%w: postings for %q out of bounds", apperrors.ErrSnapshotCorrupt, entry.Term)
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("%w: parsing postings for %q: %v", apperrors.ErrSnapshotCorrupt, entry.Term, err)
	}
	if len(postings) != entry.DocFreq {
		return nil, fmt.Errorf("%w: term %q has %d postings, dictionary says %d", apperrors.ErrSnapshotCorrupt, entry.Term, len(postings), entry.DocFreq)
	}
	return postings, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Generation() string {
	return r.docs.Generation
}

// TokenizerFingerprint is the fingerprint of the tokenizer the snapshot
// was built with.
func (r *Reader) TokenizerFingerprint() string {
	return r.docs.Tokenizer
}

// Index restores the full snapshot. tok must normalise text exactly like the
// tokenizer used at build time; otherwise ErrSnapshotMismatch is returned
// and the caller should rebuild from source.
func (r *Reader) Index(tok *tokenizer.Tokenizer) (*index.Index, error) {
	if tok == nil {
		tok = tokenizer.Default()
	}
	if fp := tok.Fingerprint(); fp != r.docs.Tokenizer {
		return nil, fmt.Errorf("%w: snapshot tokenizer %q, configured %q", apperrors.ErrSnapshotMismatch, r.docs.Tokenizer, fp)
	}
	entries := make([]index.TermEntry, 0, len(r.dict))
	for i, entry := range r.dict {
		if i > 0 && r.dict[i-1].Term >= entry.Term {
			return nil, fmt.Errorf("%w: dictionary not sorted at %q", apperrors.ErrSnapshotCorrupt, entry.Term)
		}
		pl, err := r.postings(entry)
		if err != nil {
			return nil, err
		}
		entries = append(entries, index.TermEntry{Term: entry.Term, Postings: pl})
	}
	ix, err := index.Restore(r.docs.Documents, entries, tok, r.docs.BuiltAt)
	if err != nil {
		return nil, fmt.Errorf("restoring snapshot %s: %w", r.filePath, err)
	}
	if ix.Generation() != r.docs.Generation {
		return nil, fmt.Errorf("%w: generation %s does not match recorded %s", apperrors.ErrSnapshotCorrupt, ix.Generation(), r.docs.Generation)
	}
	return ix, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Load opens path, restores the index it holds and closes the file.
func Load(path string, tok *tokenizer.Tokenizer) (*index.Index, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Index(tok)
}
