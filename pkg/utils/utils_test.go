package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "12345678909", OnlyDigits("123.456.789-09"))
	assert.Equal(t, "", OnlyDigits("abc"))
}

func TestToBool(t *testing.T) {
	assert.True(t, ToBool("sim"))
	assert.True(t, ToBool([]byte("1")))
	assert.False(t, ToBool(nil))
	assert.False(t, ToBool("no"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 25, ClampLimit(0, 25, 100))
	assert.Equal(t, 100, ClampLimit(500, 25, 100))
	assert.Equal(t, 10, ClampLimit(10, 25, 100))
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	assert.True(t, IsValidUUID(id))
	assert.NotEqual(t, id, GenerateID())
}
