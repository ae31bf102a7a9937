package shardsource

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
)

// A segment packs a whole shard tree into one .spdx file: a 64-byte header,
// the raw payloads back to back, a JSON dictionary sorted by ref, and a
// 32-byte footer carrying the dictionary checksum.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	ShardCount uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	DataOffset int64
	DataSize   int64
}

// DictEntry locates one shard payload inside the data section.
type DictEntry struct {
	Ref    string `json:"r"`
	Offset int64  `json:"o"`
	Len    int    `json:"l"`
}

// WriteSegment copies refs from src into a new segment at path. The file is
// written to a temporary name and renamed on success.
func WriteSegment(ctx context.Context, path string, src Source, refs []shard.Ref) (int, error) {
	if len(refs) == 0 {
		return 0, fmt.Errorf("%w: cannot write empty segment", apperrors.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("creating segment directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.Write(headerBytes); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	dataStart := int64(HeaderSize)
	offset := int64(0)
	dict := make([]DictEntry, 0, len(refs))
	for _, ref := range refs {
		data, err := src.Fetch(ctx, ref)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", ref, err)
		}
		if _, err := f.Write(data); err != nil {
			return 0, fmt.Errorf("writing %s: %w", ref, err)
		}
		dict = append(dict, DictEntry{Ref: ref.String(), Offset: offset, Len: len(data)})
		offset += int64(len(data))
	}
	sort.Slice(dict, func(i, j int) bool { return dict[i].Ref < dict[j].Ref })

	dictStart := dataStart + offset
	dictData, err := json.Marshal(dict)
	if err != nil {
		return 0, fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return 0, fmt.Errorf("writing dictionary: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(dict)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(offset))
	if _, err := f.Write(footer); err != nil {
		return 0, fmt.Errorf("writing footer: %w", err)
	}

	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(dict)))
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(dictStart))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(dataStart))
	binary.LittleEndian.PutUint64(headerBytes[48:56], uint64(offset))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return 0, fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("renaming segment file: %w", err)
	}
	return len(dict), nil
}

// Segment serves shards out of a packed segment file.
type Segment struct {
	file   *os.File
	header SegmentHeader
	dict   []DictEntry
}

func OpenSegment(path string) (*Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	s, err := readSegment(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func readSegment(f *os.File) (*Segment, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("%w: reading segment header: %v", apperrors.ErrMalformedShard, err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad segment magic bytes %x", apperrors.ErrMalformedShard, magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		ShardCount: binary.LittleEndian.Uint32(headerBytes[8:12]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		DataOffset: int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		DataSize:   int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported segment version %d", apperrors.ErrMalformedShard, header.Version)
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("%w: reading dictionary: %v", apperrors.ErrMalformedShard, err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		return nil, fmt.Errorf("%w: reading footer: %v", apperrors.ErrMalformedShard, err)
	}
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(dictBytes) {
		return nil, fmt.Errorf("%w: dictionary checksum mismatch", apperrors.ErrMalformedShard)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("%w: parsing dictionary: %v", apperrors.ErrMalformedShard, err)
	}
	return &Segment{file: f, header: header, dict: dict}, nil
}

func (s *Segment) Name() string { return "segment" }

func (s *Segment) Fetch(ctx context.Context, ref shard.Ref) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := ref.String()
	idx := sort.Search(len(s.dict), func(i int) bool {
		return s.dict[i].Ref >= key
	})
	if idx >= len(s.dict) || s.dict[idx].Ref != key {
		return nil, fmt.Errorf("%s: %w", ref, apperrors.ErrShardNotFound)
	}
	entry := s.dict[idx]
	data := make([]byte, entry.Len)
	if _, err := s.file.ReadAt(data, s.header.DataOffset+entry.Offset); err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}
	return data, nil
}

// Len returns the number of shards in the segment.
func (s *Segment) Len() int {
	return len(s.dict)
}

func (s *Segment) CreatedAt() time.Time {
	return time.Unix(s.header.CreatedAt, 0)
}

func (s *Segment) Close() error {
	return s.file.Close()
}
