// Package idgen generates document ids. Ids are a short type prefix plus a
// base36-encoded random suffix, so they sort nowhere in particular but are
// easy to read aloud and paste into a terminal.
package idgen

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Suffix lengths per id kind. Task ids are the most numerous, so they get
// the widest space.
const (
	templateSuffixLen = 8
	instanceSuffixLen = 8
	taskSuffixLen     = 10
	userSuffixLen     = 8
)

// NewTemplateID returns an id like "tpl-4k9qz1xw".
func NewTemplateID() string { return "tpl-" + randomBase36(templateSuffixLen) }

// NewInstanceID returns an id like "ins-7m2pa8rd".
func NewInstanceID() string { return "ins-" + randomBase36(instanceSuffixLen) }

// NewTaskID returns an id like "task-0f3nq82wyc".
func NewTaskID() string { return "task-" + randomBase36(taskSuffixLen) }

// NewUserID returns an id like "usr-b61kt0pe".
func NewUserID() string { return "usr-" + randomBase36(userSuffixLen) }

// NewNoteID returns an id like "note-x90d2mq4tc".
func NewNoteID() string { return "note-" + randomBase36(taskSuffixLen) }

// randomBase36 encodes fresh UUID bytes in base36, padded or truncated to
// the requested length (least significant digits kept).
func randomBase36(length int) string {
	id := uuid.New()
	return EncodeBase36(id[:], length)
}

// EncodeBase36 converts a byte slice to a base36 string of the given length.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}

	str := string(chars)
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}
