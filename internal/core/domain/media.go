package domain

import (
	"path/filepath"
	"strings"
)

type MediaType string

const (
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
)

// MediaTypes lists every media type a task queue exists for.
func MediaTypes() []MediaType {
	return []MediaType{MediaAudio, MediaDocument, MediaImage, MediaVideo}
}

// QueueName is the primary task queue for a media type.
func (m MediaType) QueueName() string {
	return string(m) + "_processing"
}

var extensionTable = map[string]MediaType{
	".mp3":  MediaAudio,
	".wav":  MediaAudio,
	".ogg":  MediaAudio,
	".opus": MediaAudio,
	".m4a":  MediaAudio,

	".pdf":  MediaDocument,
	".docx": MediaDocument,
	".xlsx": MediaDocument,
	".xls":  MediaDocument,
	".txt":  MediaDocument,
	".vcf":  MediaDocument,

	".jpg":  MediaImage,
	".jpeg": MediaImage,
	".png":  MediaImage,

	".mp4": MediaVideo,
	".avi": MediaVideo,
	".mov": MediaVideo,
}

// ClassifyFile maps a filename to its media type by extension,
// case-insensitively. The second return is false for unsupported files.
func ClassifyFile(filename string) (MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	media, ok := extensionTable[ext]
	return media, ok
}
