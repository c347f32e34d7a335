package extractor

import (
	"fmt"
	"unicode/utf8"
)

func extractPlaintext(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file is not valid utf-8 text")
	}
	return string(raw), nil
}
