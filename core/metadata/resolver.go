// Package metadata turns raw media files into track descriptors.
package metadata

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"genesis/logger"
	"genesis/model"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
)

// ErrUnsupported marks input that is not an audio file.
var ErrUnsupported = errors.New("not an audio file")

// maxCoverScan bounds the image slice taken by the signature scan.
const maxCoverScan = 500000

// RawMedia is one incoming media object.
type RawMedia struct {
	Name        string // file name, used for type detection and the title fallback
	ContentType string
	Data        []byte
}

// Resolver extracts descriptive metadata from raw media.
type Resolver interface {
	Resolve(ctx context.Context, raw RawMedia) (*model.TrackDescriptor, error)
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".aac": true, ".m4a": true,
	".ogg": true, ".opus": true, ".wma": true, ".alac": true, ".ape": true,
	".dsf": true, ".dsd": true, ".mpc": true, ".wv": true, ".tta": true,
	".dff": true, ".aiff": true, ".aif": true, ".ac3": true, ".eac3": true,
	".dts": true,
}

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".alac": "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
	".ac3":  "audio/ac3",
}

// IsAudio reports whether a file looks like audio by content type or extension.
func IsAudio(name, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "audio/") {
		return true
	}
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// ContentType returns the declared type, else one guessed from the extension.
func ContentType(raw RawMedia) string {
	if raw.ContentType != "" && raw.ContentType != "application/octet-stream" {
		return raw.ContentType
	}
	ext := strings.ToLower(filepath.Ext(raw.Name))
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// TitleFromName strips the directory and extension from a file name.
func TitleFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TagResolver reads ID3, MP4, FLAC and Ogg tags.
type TagResolver struct{}

// NewResolver returns the tag-based Resolver.
func NewResolver() *TagResolver {
	return &TagResolver{}
}

// Resolve returns ErrUnsupported for non-audio input. Unreadable tags are not
// an error: the descriptor then carries only the file-name title.
func (r *TagResolver) Resolve(_ context.Context, raw RawMedia) (*model.TrackDescriptor, error) {
	if !IsAudio(raw.Name, raw.ContentType) {
		return nil, ErrUnsupported
	}

	desc := &model.TrackDescriptor{
		ID:    uuid.NewString(),
		Title: TitleFromName(raw.Name),
	}

	m, err := tag.ReadFrom(bytes.NewReader(raw.Data))
	if err != nil {
		logger.Debug("no readable tags", logger.String("file", raw.Name), logger.ErrorField(err))
		return desc, nil
	}

	if t := strings.TrimSpace(m.Title()); t != "" {
		desc.Title = t
	}
	desc.Artist = strings.TrimSpace(m.Artist())
	desc.Album = strings.TrimSpace(m.Album())
	if g := strings.TrimSpace(m.Genre()); g != "" {
		desc.Tags = []string{g}
	}

	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		desc.Cover = pic.Data
		desc.CoverType = pic.MIMEType
		if desc.CoverType == "" {
			desc.CoverType = mime.TypeByExtension("." + pic.Ext)
		}
	} else {
		desc.Cover, desc.CoverType = ScanCover(raw.Data)
	}

	desc.Lyrics = m.Lyrics()
	if desc.Lyrics == "" {
		desc.Lyrics = m.Comment()
	}
	return desc, nil
}

var coverSignatures = []struct {
	magic []byte
	mime  string
}{
	{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
}

// ScanCover finds the first embedded JPEG or PNG by signature and returns up
// to maxCoverScan bytes from it. It returns nil when none is found.
func ScanCover(data []byte) ([]byte, string) {
	for i := 0; i+4 <= len(data); i++ {
		for _, sig := range coverSignatures {
			if bytes.Equal(data[i:i+4], sig.magic) {
				end := i + maxCoverScan
				if end > len(data) {
					end = len(data)
				}
				return append([]byte(nil), data[i:end]...), sig.mime
			}
		}
	}
	return nil, ""
}
