package response_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/port-booking-backend/internal/pkg/response"
)

func TestNewPageResponse(t *testing.T) {
	p := response.NewPageResponse([]string{"a", "b"}, 1, 2, 5)
	assert.True(t, p.HasMore)

	p = response.NewPageResponse([]string{"e"}, 3, 2, 5)
	assert.False(t, p.HasMore)

	raw, err := json.Marshal(response.NewPageResponse[string](nil, 1, 20, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"page":1,"page_size":20,"total":0,"has_more":false}`, string(raw))
}
