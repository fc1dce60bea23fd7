package virtup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_List(t *testing.T) {
	e, lv, _ := newTestEngine(t.TempDir())
	lv.addDomain("TEMPLATE-default", 5, &Meta{Name: "TEMPLATE-default", Template: "default"})
	lv.addDomain("myinst", domainStateRunning, &Meta{Name: "myinst", Template: "default", MemoryMiB: 1024})
	lv.addDomain("unrelated", domainStateRunning, nil)
	lv.lease("myinst", "192.168.122.10")

	infos, err := e.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "TEMPLATE-default", infos[0].Name)
	assert.True(t, infos[0].IsTemplate)
	assert.Equal(t, "shutoff", infos[0].State)
	assert.Empty(t, infos[0].Address)

	assert.Equal(t, "myinst", infos[1].Name)
	assert.False(t, infos[1].IsTemplate)
	assert.Equal(t, "running", infos[1].State)
	assert.Equal(t, "192.168.122.10", infos[1].Address)
	assert.Equal(t, uint(1024), infos[1].MemoryMiB)
}

func TestStateToString(t *testing.T) {
	assert.Equal(t, "running", stateToString(1))
	assert.Equal(t, "shutoff", stateToString(5))
	assert.Equal(t, "unknown(42)", stateToString(42))
}
