package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporter_DisabledWithoutToken(t *testing.T) {
	r := NewReporter("", "test", "dev")
	assert.False(t, r.Enabled())

	assert.NotPanics(t, func() {
		r.Error(errors.New("boom"), &Person{ID: "u1"}, nil)
		r.Critical("panic", nil, nil)
		r.Close()
	})
}

func TestReporter_NilIsSafe(t *testing.T) {
	var r *Reporter
	assert.False(t, r.Enabled())
	assert.NotPanics(t, func() { r.Error(errors.New("boom"), nil, nil) })
}
