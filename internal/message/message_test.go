package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextConcatenatesTextParts(t *testing.T) {
	t.Parallel()

	m := New(User,
		TextPart{Text: "hello "},
		BinaryPart{MIMEType: "image/png", Data: []byte{1}},
		TextPart{Text: "world"},
	)
	require.Equal(t, "hello world", m.Text())
	require.Len(t, m.BinaryParts(), 1)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	t.Parallel()

	m := New(Model,
		TextPart{Text: "here is a diagram"},
		BinaryPart{MIMEType: "image/png", Data: []byte{0xDE, 0xAD}},
	)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"type":"text"`)
	require.Contains(t, string(raw), `"type":"binary"`)

	var got Message
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, m.ID, got.ID)
	require.Equal(t, Model, got.Role)
	require.Len(t, got.Parts, 2)
	require.Equal(t, []byte{0xDE, 0xAD}, got.Parts[1].(BinaryPart).Data)
}

func TestUnmarshallPartsRejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := UnmarshallParts([]byte(`[{"type":"hologram","data":{}}]`))
	require.Error(t, err)
}

func TestAttachmentIsImage(t *testing.T) {
	t.Parallel()

	require.True(t, Attachment{MimeType: "image/png"}.IsImage())
	require.True(t, Attachment{MimeType: "image/webp"}.IsImage())
	require.False(t, Attachment{MimeType: "application/pdf"}.IsImage())
	require.False(t, Attachment{MimeType: "text/plain"}.IsImage())
}
