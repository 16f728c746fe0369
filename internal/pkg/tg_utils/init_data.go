package tg_utils

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// MaxValidationBytes is the largest payload the verification program stores.
const MaxValidationBytes = 768

var (
	reHex      = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	reUsername = regexp.MustCompile(`^[A-Za-z0-9_]{5,32}$`)
)

var (
	ErrEmptyEncoding    = errors.New("empty encoded value")
	ErrMissingSignature = errors.New("init data has no signature")
	ErrMissingUser      = errors.New("init data has no user payload")
	ErrMalformedUser    = errors.New("init data user payload is malformed")
	ErrInvalidUsername  = errors.New("init data has no valid username")
)

// DecodeBytes accepts hex (even length) or base64 in either alphabet, padded or not.
func DecodeBytes(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrEmptyEncoding
	}
	if len(value)%2 == 0 && reHex.MatchString(value) {
		return hex.DecodeString(value)
	}

	normalized := strings.Map(func(r rune) rune {
		switch r {
		case '-':
			return '+'
		case '_':
			return '/'
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, value)
	normalized = strings.TrimRight(normalized, "=")
	return base64.RawStdEncoding.DecodeString(normalized)
}

// ValidationBytesFromRawInitData rebuilds the string Telegram signs for third parties:
// "<botID>:WebAppData" followed by the sorted key=value pairs, hash and signature
// excluded. It also returns the decoded signature field.
func ValidationBytesFromRawInitData(botID int64, raw string) ([]byte, []byte, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse init data")
	}

	encodedSig := values.Get("signature")
	if encodedSig == "" {
		return nil, nil, ErrMissingSignature
	}
	signature, err := DecodeBytes(encodedSig)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode init data signature")
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" || key == "signature" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := []string{strconv.FormatInt(botID, 10) + ":WebAppData"}
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}
	return []byte(strings.Join(lines, "\n")), signature, nil
}

// ExtractUsername returns the username of the user JSON line in validation bytes.
func ExtractUsername(validationBytes []byte) (string, error) {
	var line []byte
	switch {
	case bytes.Contains(validationBytes, []byte("\nuser=")):
		line = validationBytes[bytes.Index(validationBytes, []byte("\nuser="))+len("\nuser="):]
	case bytes.HasPrefix(validationBytes, []byte("user=")):
		line = validationBytes[len("user="):]
	default:
		return "", ErrMissingUser
	}
	if end := bytes.IndexByte(line, '\n'); end >= 0 {
		line = line[:end]
	}

	var user struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(line, &user); err != nil {
		return "", ErrMalformedUser
	}
	if !reUsername.MatchString(user.Username) {
		return "", ErrInvalidUsername
	}
	return user.Username, nil
}

// AuthDate returns the auth_date of raw init data.
func AuthDate(raw string) (time.Time, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse init data")
	}
	sec, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "auth_date")
	}
	return time.Unix(sec, 0), nil
}
