package endpoint

import (
	"context"
	"testing"

	"github.com/ChuLiYu/superpy/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRemoteEndpointSubmitRejectsEmptyName(t *testing.T) {
	e := &RemoteEndpoint{key: types.EndpointKey{Host: "h", Port: 1}}
	_, err := e.Submit(context.Background(), types.Task{Name: ""})
	assert.Error(t, err)
}

func TestRemoteEndpointKey(t *testing.T) {
	key := types.EndpointKey{Host: "h", Port: 9287}
	e := &RemoteEndpoint{key: key}
	assert.Equal(t, key, e.Key())
}
