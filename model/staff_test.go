package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionSetScan(t *testing.T) {
	var p PermissionSet
	require.NoError(t, p.Scan([]byte(`{"can_advance":true,"can_vote":false}`)))
	assert.True(t, p["can_advance"])
	assert.False(t, p["can_vote"])

	// MySQL驱动可能给string
	var q PermissionSet
	require.NoError(t, q.Scan(`{"can_view_metrics":true}`))
	assert.True(t, q["can_view_metrics"])
}

func TestPermissionSetScanEmpty(t *testing.T) {
	var p PermissionSet
	require.NoError(t, p.Scan(nil))
	assert.Nil(t, p)

	require.NoError(t, p.Scan([]byte("null")))
	assert.Nil(t, p)
}

func TestPermissionSetValueNil(t *testing.T) {
	var p PermissionSet
	v, err := p.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
