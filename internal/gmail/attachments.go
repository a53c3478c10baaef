package gmail

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxAttachmentSize is Gmail's limit for a message including attachments (25MB).
	MaxAttachmentSize = 25 * 1024 * 1024

	defaultContentType = "application/octet-stream"
)

// contentTypes maps lower-case file extensions to the Content-Type declared
// for the attachment part.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".zip":  "application/zip",
}

// ContentTypeForFilename returns the attachment Content-Type for a filename.
// Unknown or missing extensions map to application/octet-stream.
func ContentTypeForFilename(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return defaultContentType
}

// LoadAttachment reads the file at path into an Attachment named after the
// file's base name. Every failure is a KindAttachmentUnreadable error.
func LoadAttachment(path string) (*Attachment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, newError(KindAttachmentUnreadable, nil, "attachment path is empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(KindAttachmentUnreadable, err, "attachment not found: %s", path)
		}
		return nil, newError(KindAttachmentUnreadable, err, "cannot access attachment %s: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, newError(KindAttachmentUnreadable, nil, "attachment is not a regular file: %s", path)
	}
	if info.Size() > MaxAttachmentSize {
		return nil, newError(KindAttachmentUnreadable, nil,
			"attachment %s is %d bytes, exceeds maximum size of %d bytes", path, info.Size(), MaxAttachmentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindAttachmentUnreadable, err, "cannot read attachment %s: %v", path, err)
	}

	return &Attachment{
		Filename: filepath.Base(path),
		Data:     data,
	}, nil
}
