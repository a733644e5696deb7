package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	hash := HashString("hello world")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashString("hello world"))
	assert.NotEqual(t, hash, HashString("hello world "))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "", Fingerprint(""))
	fp := Fingerprint("sk-test")
	assert.Len(t, fp, 12)
	assert.Equal(t, HashString("sk-test")[:12], fp)
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		delimiter string
		want      string
	}{
		{name: "empty", secret: "", want: ""},
		{name: "short", secret: "abc", want: "***"},
		{name: "plain key", secret: "sk-1234567890", want: "*********7890"},
		{name: "composite", secret: "my-resource%key-abcdef", delimiter: "%", want: "*******urce%******cdef"},
		{name: "empty segment kept", secret: "AKIAXXXX%secret%%us-east-1", delimiter: "%", want: "****XXXX%**cret%%*****st-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskSecret(tt.secret, tt.delimiter))
		})
	}
}
