package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyValues(t *testing.T) {
	params, err := parseKeyValues([]string{"vendor_id=7", "part_type=Rail Clips", "material="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"vendor_id": "7",
		"part_type": "Rail Clips",
		"material":  "",
	}, params)

	_, err = parseKeyValues([]string{"vendor_id"})
	assert.Error(t, err)
	_, err = parseKeyValues([]string{"=7"})
	assert.Error(t, err)
}
