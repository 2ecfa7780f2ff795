package utils

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// SniffLength is the number of leading bytes inspected when detecting binary content.
const SniffLength = 1024

// BinaryPlaceholder replaces binary file content in previews and exports.
const BinaryPlaceholder = "*Binary file*"

const replacementCharacter = "�"

// IsBinary reports whether the first SniffLength bytes of data contain a null byte.
func IsBinary(data []byte) bool {
	if len(data) > SniffLength {
		data = data[:SniffLength]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// IsFileBinary reads up to SniffLength bytes from the file at path and determines
// if the content appears to be binary.
func IsFileBinary(path string) bool {
	fileHandle, openError := os.Open(path)
	if openError != nil {
		return false
	}
	defer fileHandle.Close()

	buffer := make([]byte, SniffLength)
	bytesRead, readError := io.ReadFull(fileHandle, buffer)
	if readError != nil && readError != io.EOF && readError != io.ErrUnexpectedEOF {
		return false
	}
	return IsBinary(buffer[:bytesRead])
}

// DecodeText converts data to a string, replacing invalid UTF-8 sequences
// with the Unicode replacement character.
func DecodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), replacementCharacter)
}
