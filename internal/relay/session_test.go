package relay

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gorelay/internal/codec"
)

func TestDeliverLogsPeerAddress(t *testing.T) {
	hook := test.NewLocal(log)
	prev := log.GetLevel()
	log.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		hook.Reset()
		log.ReplaceHooks(make(logrus.LevelHooks))
		log.SetLevel(prev)
	})

	out := &recorder{closed: true}
	s := newSession("a", codec.JSON{}, out, "10.0.0.7:4242")

	assert.False(t, s.deliver(Message{"text": "hi"}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "send_failed", entry.Message)
	assert.Equal(t, "10.0.0.7:4242", entry.Data["addr"])
	assert.Equal(t, "a", entry.Data["session"])
}
