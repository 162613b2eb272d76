package identity

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenWithPayload(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".sig"
}

func TestFromHeader(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   Identity
	}{
		{"empty", "", Anonymous()},
		{"string sub", "Bearer " + tokenWithPayload(`{"sub":"u1"}`), New("u1")},
		{"numeric sub", "Bearer " + tokenWithPayload(`{"sub":42}`), New("42")},
		{"fractional sub", "Bearer " + tokenWithPayload(`{"sub":1.5}`), New("1.5")},
		{"true sub", "Bearer " + tokenWithPayload(`{"sub":true}`), New("true")},
		{"object sub", "Bearer " + tokenWithPayload(`{"sub":{"a":1}}`), New(`{"a":1}`)},
		{"array sub", "Bearer " + tokenWithPayload(`{"sub":[1, 2]}`), New("[1,2]")},
		{"zero sub", "Bearer " + tokenWithPayload(`{"sub":0}`), Anonymous()},
		{"empty sub", "Bearer " + tokenWithPayload(`{"sub":""}`), Anonymous()},
		{"null sub", "Bearer " + tokenWithPayload(`{"sub":null}`), Anonymous()},
		{"missing sub", "Bearer " + tokenWithPayload(`{"name":"x"}`), Anonymous()},
		{"not json", "Bearer " + tokenWithPayload(`not json`), Anonymous()},
		{"json array", "Bearer " + tokenWithPayload(`[1,2]`), Anonymous()},
		{"lowercase scheme", "bearer " + tokenWithPayload(`{"sub":"u1"}`), Anonymous()},
		{"no scheme", tokenWithPayload(`{"sub":"u1"}`), Anonymous()},
		{"double space", "Bearer  " + tokenWithPayload(`{"sub":"u1"}`), Anonymous()},
		{"trailing part", "Bearer " + tokenWithPayload(`{"sub":"u1"}`) + " x", Anonymous()},
		{"empty token", "Bearer ", Anonymous()},
		{"two segments", "Bearer a.b", Anonymous()},
		{"four segments", "Bearer a.b.c.d", Anonymous()},
		{"bad base64", "Bearer a.!!!.c", Anonymous()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromHeader(tc.header)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFromHeaderPaddedPayload(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte(`{"sub":"u12"}`))
	got := FromHeader("Bearer h." + body + ".s")
	assert.Equal(t, New("u12"), got)
}

func TestFromHeaderStandardAlphabet(t *testing.T) {
	// encodes with both '+' and '/'
	payload := []byte(`{"sub":"~~~?"}`)
	body := base64.StdEncoding.EncodeToString(payload)
	got := FromHeader("Bearer h." + body + ".s")
	assert.Equal(t, New("~~~?"), got)
}

func TestIdentityMatches(t *testing.T) {
	a := New("a")
	assert.True(t, a.Matches(New("a")))
	assert.False(t, a.Matches(New("b")))
	assert.False(t, Anonymous().Matches(Anonymous()))
	assert.False(t, a.Matches(Anonymous()))

	id, ok := a.ID()
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	_, ok = Anonymous().ID()
	assert.False(t, ok)
	assert.Equal(t, "anonymous", Anonymous().String())
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), New("7"))
	assert.Equal(t, New("7"), FromContext(ctx))
	assert.True(t, FromContext(context.Background()).IsAnonymous())
}

func TestIssuerTokenIsExtractable(t *testing.T) {
	issuer, err := NewIssuer("", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue("99")
	require.NoError(t, err)
	assert.Equal(t, New("99"), FromHeader("Bearer "+token))

	_, err = issuer.Issue("")
	assert.Error(t, err)
}
