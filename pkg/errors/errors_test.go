package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", Newf(ErrInvalidInput, http.StatusTeapot, "q=%q", "x"), http.StatusTeapot},
		{"wrapped not found", fmt.Errorf("stem foo: %w", ErrShardNotFound), http.StatusNotFound},
		{"busy", ErrBusy, http.StatusConflict},
		{"timeout", fmt.Errorf("fetch: %w", ErrTimeout), http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.True(t, Permanent(fmt.Errorf("x: %w", ErrShardNotFound)))
	assert.True(t, Permanent(fmt.Errorf("x: %w", ErrMalformedShard)))
	assert.False(t, Permanent(fmt.Errorf("x: %w", ErrSourceUnavailable)))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := New(ErrBusy, http.StatusConflict, "try later")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, "search already in progress: try later", err.Error())
}
