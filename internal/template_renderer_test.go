package internal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextTemplateRenderer(t *testing.T) {
	r := NewTextTemplateRenderer()
	r.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	out, err := r.Render(`SKU-{{ date "2006" now }}-{{ lower .code }}`, map[string]any{"code": "AB"})
	require.NoError(t, err)
	assert.Equal(t, "SKU-2025-ab", out)

	out, err = r.Render(`{{ uuid }}`, nil)
	require.NoError(t, err)
	_, err = uuid.Parse(out)
	assert.NoError(t, err)

	_, err = r.Render(`{{ .broken `, nil)
	assert.Error(t, err)
}
