package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapLabelsUnclassifiedAsTransport(t *testing.T) {
	err := Wrap(errors.New("connection refused"), "Error fetching listings")

	assert.Equal(t, "Error fetching listings: connection refused", err.Error())
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestWrapKeepsExistingKind(t *testing.T) {
	err := Wrap(NotFound("listing not found"), "Error fetching listing")

	assert.True(t, Is(err, KindNotFound))
	assert.True(t, errors.Is(err, NotFound("")))
	assert.Equal(t, "Error fetching listing: listing not found", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "label"))
}

func TestKindSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", AccessDenied("Access denied to this conversation"))
	assert.Equal(t, KindAccessDenied, KindOf(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindAccessDenied:    http.StatusForbidden,
		KindNotFound:        http.StatusNotFound,
		KindConfiguration:   http.StatusInternalServerError,
		KindTransport:       http.StatusBadGateway,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}
