package transcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/omf/internal/shared"
)

// ChunkSize is the number of input bytes encoded per step (8 KiB rounded down to a multiple of 3).
const ChunkSize = 8190

// MinSniffLength is the length a text must exceed before [LooksLikeBase64] considers it.
const MinSniffLength = 100

// DecodeError reports text that is not valid standard base64.
type DecodeError struct {
	Offset int64
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %s at offset %d", shared.ErrDecode, e.Reason, e.Offset)
}

func (e *DecodeError) Unwrap() error { return shared.ErrDecode }

// DecodeBase64 decodes padded standard base64.
//
// Empty text decodes to an empty, non-nil slice.
func DecodeBase64(text string) ([]byte, error) {
	if text == "" {
		return []byte{}, nil
	}
	if i := strings.IndexFunc(text, func(r rune) bool { return !isAlphabet(r) && r != '=' }); i >= 0 {
		r, _ := utf8.DecodeRuneInString(text[i:])
		return nil, &DecodeError{Offset: int64(i), Reason: fmt.Sprintf("illegal character %q", r)}
	}

	out := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Strict().Decode(out, []byte(text))
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return nil, &DecodeError{Offset: int64(corrupt), Reason: "invalid padding"}
		}
		return nil, &DecodeError{Reason: err.Error()}
	}
	return out[:n], nil
}

// EncodeBase64 encodes data as padded standard base64. It never fails.
func EncodeBase64(data []byte) string {
	var b strings.Builder
	b.Grow(base64.StdEncoding.EncodedLen(len(data)))
	// strings.Builder writes cannot fail
	_ = EncodeBase64To(&b, data)
	return b.String()
}

// EncodeBase64To streams the encoding of data to w one chunk at a time.
func EncodeBase64To(w io.Writer, data []byte) error {
	buf := make([]byte, base64.StdEncoding.EncodedLen(ChunkSize))
	for start := 0; start < len(data); start += ChunkSize {
		end := min(start+ChunkSize, len(data))
		n := base64.StdEncoding.EncodedLen(end - start)
		base64.StdEncoding.Encode(buf[:n], data[start:end])
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
	return nil
}

// LooksLikeBase64 reports whether text is longer than [MinSniffLength] and consists only of base64 alphabet
// characters followed by at most two '=' padding characters.
//
// It does not check that the length is a multiple of four; a false positive simply fails to decode.
func LooksLikeBase64(text string) bool {
	if len(text) <= MinSniffLength {
		return false
	}

	body := strings.TrimRight(text, "=")
	if len(text)-len(body) > 2 {
		return false
	}
	for i := 0; i < len(body); i++ {
		if !isAlphabet(rune(body[i])) {
			return false
		}
	}
	return true
}

func isAlphabet(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '+' || r == '/':
		return true
	}
	return false
}
