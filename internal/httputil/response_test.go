package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
)

func TestWriteErrorUsesKindStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperr.AccessDenied("Access denied to this conversation"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Access denied to this conversation", body.Error)
	assert.Equal(t, "ACCESS_DENIED", body.Code)
}

func TestDecodeJSONRejectsMalformed(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var v map[string]interface{}
	err := DecodeJSON(r, &v)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
