package upload

import (
	"github.com/gabriel-vasile/mimetype"
)

const MaxFileSize = 10 << 20

// accepted maps each allowed declared type to the sniffed types its bytes may
// resolve to. Legacy Office files often only sniff as an OLE container.
var accepted = map[string][]string{
	"application/pdf": {"application/pdf"},
	"application/msword": {
		"application/msword",
		"application/x-ole-storage",
	},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/zip",
	},
	"application/vnd.ms-excel": {
		"application/vnd.ms-excel",
		"application/x-ole-storage",
	},
}

func AllowedType(contentType string) bool {
	_, ok := accepted[contentType]
	return ok
}

// Validate checks the declared type, the size and the actual bytes.
func Validate(declared string, data []byte) error {
	if len(data) == 0 {
		return ErrNoFile
	}
	allowed, ok := accepted[declared]
	if !ok {
		return ErrUnsupportedType
	}
	if len(data) > MaxFileSize {
		return ErrTooLarge
	}

	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		for _, a := range allowed {
			if m.Is(a) {
				return nil
			}
		}
	}
	return ErrContentMismatch
}
