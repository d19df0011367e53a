package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleCancelMarkup(t *testing.T) {
	m := SingleCancelMarkup("conv_cancel", "")
	require.Len(t, m.InlineKeyboard, 1)
	require.Len(t, m.InlineKeyboard[0], 1)

	btn := m.InlineKeyboard[0][0]
	assert.Equal(t, defaultCancelButtonText, btn.Text)
	assert.Equal(t, "conv_cancel", btn.Unique)
	assert.Equal(t, CancelPayload, btn.Data)
}
