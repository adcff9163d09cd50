package vsmeta

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func varintField(num, v uint64) []byte {
	out := binary.AppendUvarint(nil, num<<3)
	return binary.AppendUvarint(out, v)
}

func lenField(num uint64, payload []byte) []byte {
	out := binary.AppendUvarint(nil, num<<3|2)
	out = binary.AppendUvarint(out, uint64(len(payload)))
	return append(out, payload...)
}

// wrapBase64 encodes like Synology does, folding the text at 76 columns.
func wrapBase64(img []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(img)
	var out []byte
	for len(enc) > 76 {
		out = append(out, enc[:76]...)
		out = append(out, '\n')
		enc = enc[76:]
	}
	return append(out, enc...)
}

func fakeImage(magic []byte, size int) []byte {
	img := make([]byte, size)
	copy(img, magic)
	for i := len(magic); i < size; i++ {
		img[i] = byte(i)
	}
	return img
}

func TestExtract(t *testing.T) {
	thumb := fakeImage([]byte{0xff, 0xd8, 0xff, 0xe0}, 200)
	poster := fakeImage([]byte{0x89, 'P', 'N', 'G'}, 300)
	fanart := fakeImage([]byte{0xff, 0xd8, 0xff, 0xe1}, 250)

	t.Run("episode sidecar", func(t *testing.T) {
		show := lenField(2, []byte("Foo"))
		show = append(show, lenField(3, wrapBase64(poster))...)

		var doc []byte
		doc = append(doc, varintField(1, 2)...)
		doc = append(doc, lenField(2, []byte("Foo S01E01"))...)
		doc = append(doc, lenField(10, wrapBase64(thumb))...)
		doc = append(doc, lenField(11, show)...)

		fsys := fstest.MapFS{"tv/Foo/ep.mkv.vsmeta": {Data: doc}}
		art, err := NewExtractor(fsys).Extract(context.Background(), "tv/Foo/ep.mkv.vsmeta")

		require.NoError(t, err)
		assert.Equal(t, thumb, art.Thumb)
		assert.Equal(t, poster, art.Poster)
		assert.Nil(t, art.Fanart)
	})

	t.Run("all three images", func(t *testing.T) {
		var doc []byte
		doc = append(doc, lenField(10, wrapBase64(thumb))...)
		doc = append(doc, lenField(12, wrapBase64(poster))...)
		doc = append(doc, lenField(13, wrapBase64(fanart))...)

		fsys := fstest.MapFS{"ep.mkv.vsmeta": {Data: doc}}
		art, err := NewExtractor(fsys).Extract(context.Background(), "ep.mkv.vsmeta")

		require.NoError(t, err)
		assert.Equal(t, thumb, art.Thumb)
		assert.Equal(t, poster, art.Poster)
		assert.Equal(t, fanart, art.Fanart)
	})

	t.Run("garbage tolerated", func(t *testing.T) {
		fsys := fstest.MapFS{"ep.mkv.vsmeta": {Data: []byte("not a protobuf message at all")}}
		art, err := NewExtractor(fsys).Extract(context.Background(), "ep.mkv.vsmeta")

		require.NoError(t, err)
		assert.Nil(t, art.Thumb)
		assert.Nil(t, art.Poster)
	})

	t.Run("truncated message keeps earlier finds", func(t *testing.T) {
		doc := lenField(10, wrapBase64(thumb))
		doc = append(doc, 0x12, 0xff) // claims a length past the end

		fsys := fstest.MapFS{"ep.mkv.vsmeta": {Data: doc}}
		art, err := NewExtractor(fsys).Extract(context.Background(), "ep.mkv.vsmeta")

		require.NoError(t, err)
		assert.Equal(t, thumb, art.Thumb)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewExtractor(fstest.MapFS{}).Extract(context.Background(), "nope.vsmeta")
		assert.Error(t, err)
	})
}
