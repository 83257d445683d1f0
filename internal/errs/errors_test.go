package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(Timeout, "flush", cause)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, Timeout, e.Kind)
}

func TestDecodeFourCCPrintable(t *testing.T) {
	code := int32('!') <<24 | int32('o')<<16 | int32('b')<<8 | int32('j')
	assert.Equal(t, "!obj", DecodeFourCC(code))
}

func TestDecodeFourCCFallsBackToNumber(t *testing.T) {
	assert.Equal(t, "5", DecodeFourCC(5))
}
