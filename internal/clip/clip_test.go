package clip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/dropshelf/internal/decode"
)

func TestTextPayload(t *testing.T) {
	assert.Nil(t, textPayload(nil))

	p := textPayload([]byte("hello"))
	require.NotNil(t, p)
	assert.Equal(t, []decode.Format{decode.FormatText}, p.Formats())
}

func TestTextPayloadOffersURIList(t *testing.T) {
	body := []byte("file:///home/me/a.txt\nfile:///home/me/b.txt\n")
	p := textPayload(body)
	require.NotNil(t, p)
	assert.Contains(t, p.Formats(), decode.FormatURIList)

	mixed := textPayload([]byte("file:///home/me/a.txt\nnot a uri"))
	assert.NotContains(t, mixed.Formats(), decode.FormatURIList)
}

func TestNotifyNeverBlocks(t *testing.T) {
	ch := make(chan struct{}, 1)
	notify(ch)
	notify(ch)
	assert.Len(t, ch, 1)
}

func TestHeadless(t *testing.T) {
	b := Headless()
	defer b.Close()
	p, err := b.Read()
	assert.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, b.Write("text", "x"))
	select {
	case <-b.Watch():
		t.Fatal("headless backend must not signal")
	default:
	}
}
