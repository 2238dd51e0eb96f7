package probe

import (
	"bytes"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/net/html"
)

// Title returns the text of the first <title> element in excerpt, with
// whitespace collapsed. It tolerates truncated markup and returns "" when no
// complete title is present. Compressed excerpts never contain one.
func Title(excerpt []byte) string {
	z := html.NewTokenizer(bytes.NewReader(excerpt))
	inTitle := false
	var sb strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				sb.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inTitle && string(name) == "title" {
				return strings.Join(strings.Fields(sb.String()), " ")
			}
		}
	}
}

// Fingerprint returns the hex SHA3-256 digest of excerpt. Two responses with
// the same fingerprint served identical leading bytes.
func Fingerprint(excerpt []byte) string {
	sum := sha3.Sum256(excerpt)
	return hex.EncodeToString(sum[:])
}
