package pdu

import "testing"

import "github.com/stretchr/testify/assert"

func TestOKAndErrorAction(t *testing.T) {
	assert.Equal(t, "rtm/publish/ok", OKAction(ActionPublish))
	assert.Equal(t, "rtm/publish/error", ErrorAction(ActionPublish))
}

func TestIsOKIsError(t *testing.T) {
	assert.True(t, IsOK("rtm/subscribe/ok"))
	assert.False(t, IsOK("rtm/subscribe/error"))
	assert.True(t, IsError("rtm/subscribe/error"))
	assert.False(t, IsError("rtm/subscribe/ok"))
}

func TestIsData(t *testing.T) {
	assert.True(t, IsData(ActionSubscriptionData))
	assert.True(t, IsData("rtm/search/data"))
	assert.False(t, IsData("rtm/search/ok"))
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(ActionAuthHandshake))
	assert.True(t, IsAuth(ActionAuthenticate))
	assert.False(t, IsAuth(ActionPublish))
}

func TestBodylessOK(t *testing.T) {
	assert.True(t, BodylessOK["rtm/publish/ok"])
	assert.True(t, BodylessOK["rtm/delete/ok"])
	assert.False(t, BodylessOK["rtm/write/ok"])
}
