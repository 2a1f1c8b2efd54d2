package pathutil

import "strings"

// Category is the display category of an entry.
type Category string

const (
	CategoryFolder   Category = "folder"
	CategoryImage    Category = "image"
	CategoryDocument Category = "document"
	CategoryPDF      Category = "pdf"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryArchive  Category = "archive"
	CategoryFile     Category = "file"
)

var extCategories = map[string]Category{
	"pdf": CategoryPDF,

	"jpg": CategoryImage, "jpeg": CategoryImage, "png": CategoryImage, "gif": CategoryImage,
	"bmp": CategoryImage, "svg": CategoryImage, "webp": CategoryImage, "ico": CategoryImage,
	"tif": CategoryImage, "tiff": CategoryImage, "heic": CategoryImage,

	"doc": CategoryDocument, "docx": CategoryDocument, "txt": CategoryDocument, "rtf": CategoryDocument,
	"odt": CategoryDocument, "xls": CategoryDocument, "xlsx": CategoryDocument, "ppt": CategoryDocument,
	"pptx": CategoryDocument, "csv": CategoryDocument, "md": CategoryDocument,

	"mp4": CategoryVideo, "avi": CategoryVideo, "mov": CategoryVideo, "wmv": CategoryVideo,
	"flv": CategoryVideo, "mkv": CategoryVideo, "webm": CategoryVideo,

	"mp3": CategoryAudio, "wav": CategoryAudio, "flac": CategoryAudio, "aac": CategoryAudio,
	"ogg": CategoryAudio, "m4a": CategoryAudio, "wma": CategoryAudio,

	"zip": CategoryArchive, "rar": CategoryArchive, "7z": CategoryArchive, "tar": CategoryArchive,
	"gz": CategoryArchive, "bz2": CategoryArchive, "xz": CategoryArchive,
}

// CategoryOf maps a file name to its category by extension.
func CategoryOf(name string) Category {
	_, ext := SplitExt(name)
	if ext == "" {
		return CategoryFile
	}
	if c, ok := extCategories[strings.ToLower(ext[1:])]; ok {
		return c
	}
	return CategoryFile
}
