package identity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const bearerScheme = "Bearer"

// Payloads are accepted in either base64 alphabet.
var stdAlphabet = strings.NewReplacer("+", "-", "/", "_")

var errTrailingData = errors.New("trailing data after claims")

// Extractor turns an Authorization value into an Identity. It never fails:
// anything it cannot read is treated as anonymous and logged.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

var defaultExtractor = NewExtractor(nil)

// FromHeader is Extractor.FromHeader without logging.
func FromHeader(header string) Identity {
	return defaultExtractor.FromHeader(header)
}

// FromHeader expects exactly "Bearer <token>" where token is a three part
// JWT-shaped string. The payload segment is decoded without verifying the
// signature and its "sub" claim becomes the identity.
func (e *Extractor) FromHeader(header string) Identity {
	if header == "" {
		return Anonymous()
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != bearerScheme {
		e.logger.Debug("identity: malformed authorization header")
		return Anonymous()
	}
	token := parts[1]
	if token == "" {
		return Anonymous()
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		e.logger.Debug("identity: token is not a three part JWT", zap.Int("segments", len(segments)))
		return Anonymous()
	}

	claims, err := decodeClaims(segments[1])
	if err != nil {
		e.logger.Debug("identity: cannot decode token payload", zap.Error(err))
		return Anonymous()
	}

	sub, ok := subject(claims["sub"])
	if !ok {
		e.logger.Debug("identity: token has no usable sub claim")
		return Anonymous()
	}
	return New(sub)
}

func decodeClaims(segment string) (jwt.MapClaims, error) {
	segment = stdAlphabet.Replace(segment)
	if pad := len(segment) % 4; pad > 0 {
		segment += strings.Repeat("=", 4-pad)
	}
	raw, err := base64.URLEncoding.DecodeString(segment)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var claims jwt.MapClaims
	if err := dec.Decode(&claims); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errTrailingData
	}
	return claims, nil
}

// subject stringifies a truthy sub claim. Empty strings, zero, false and null
// are not identities. Numbers use their shortest decimal form; objects and
// arrays become their compact JSON encoding, e.g. {"a":1} or [1,2], so two
// distinct structured claims never collapse into one identity.
func subject(v interface{}) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, s != ""
	case bool:
		if !s {
			return "", false
		}
		return "true", true
	case json.Number:
		if n, err := s.Int64(); err == nil {
			if n == 0 {
				return "", false
			}
			return strconv.FormatInt(n, 10), true
		}
		f, err := s.Float64()
		if err != nil || f == 0 || f != f {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
