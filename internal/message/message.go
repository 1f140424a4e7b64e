package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	User  Role = "user"
	Model Role = "model"
)

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

func (r *Role) UnmarshalText(data []byte) error {
	*r = Role(data)
	return nil
}

// Part is one piece of message content. Messages are immutable once appended;
// the only mutation the session layer performs is dropping whole messages
// during a rerun truncation.
type Part interface {
	isPart()
}

type TextPart struct {
	Text string `json:"text"`
}

func (p TextPart) String() string { return p.Text }

func (TextPart) isPart() {}

type BinaryPart struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

func (BinaryPart) isPart() {}

// Base64 renders the payload the way the provider wire format expects it.
func (p BinaryPart) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// MarshalJSON implements the [json.Marshaler] interface.
func (p BinaryPart) MarshalJSON() ([]byte, error) {
	type Alias BinaryPart
	return json.Marshal(&struct {
		Data string `json:"data"`
		*Alias
	}{
		Data:  base64.StdEncoding.EncodeToString(p.Data),
		Alias: (*Alias)(&p),
	})
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (p *BinaryPart) UnmarshalJSON(data []byte) error {
	type Alias BinaryPart
	aux := &struct {
		Data string `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	decoded, err := base64.StdEncoding.DecodeString(aux.Data)
	if err != nil {
		return err
	}
	p.Data = decoded
	return nil
}

type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
	CreatedAt int64  `json:"created_at"`
}

func New(role Role, parts ...Part) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Parts:     parts,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// Text returns the concatenation of all text parts.
func (m *Message) Text() string {
	text := ""
	for _, part := range m.Parts {
		if p, ok := part.(TextPart); ok {
			text += p.Text
		}
	}
	return text
}

func (m *Message) BinaryParts() []BinaryPart {
	parts := make([]BinaryPart, 0)
	for _, part := range m.Parts {
		if p, ok := part.(BinaryPart); ok {
			parts = append(parts, p)
		}
	}
	return parts
}

// MarshalJSON implements the [json.Marshaler] interface. Parts are interface
// values, so they go through the tagged wrapper encoding.
func (m Message) MarshalJSON() ([]byte, error) {
	parts, err := MarshallParts(m.Parts)
	if err != nil {
		return nil, err
	}

	type Alias Message
	return json.Marshal(&struct {
		Parts json.RawMessage `json:"parts"`
		*Alias
	}{
		Parts: json.RawMessage(parts),
		Alias: (*Alias)(&m),
	})
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (m *Message) UnmarshalJSON(data []byte) error {
	type Alias Message
	aux := &struct {
		Parts json.RawMessage `json:"parts"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	parts, err := UnmarshallParts([]byte(aux.Parts))
	if err != nil {
		return err
	}

	m.Parts = parts
	return nil
}

type partType string

const (
	textType   partType = "text"
	binaryType partType = "binary"
)

type partWrapper struct {
	Type partType `json:"type"`
	Data Part     `json:"data"`
}

func MarshallParts(parts []Part) ([]byte, error) {
	wrappedParts := make([]partWrapper, len(parts))

	for i, part := range parts {
		var typ partType

		switch part.(type) {
		case TextPart:
			typ = textType
		case BinaryPart:
			typ = binaryType
		default:
			return nil, fmt.Errorf("unknown part type: %T", part)
		}

		wrappedParts[i] = partWrapper{
			Type: typ,
			Data: part,
		}
	}
	return json.Marshal(wrappedParts)
}

func UnmarshallParts(data []byte) ([]Part, error) {
	temp := []json.RawMessage{}

	if err := json.Unmarshal(data, &temp); err != nil {
		return nil, err
	}

	parts := make([]Part, 0)

	for _, rawPart := range temp {
		var wrapper struct {
			Type partType        `json:"type"`
			Data json.RawMessage `json:"data"`
		}

		if err := json.Unmarshal(rawPart, &wrapper); err != nil {
			return nil, err
		}

		switch wrapper.Type {
		case textType:
			part := TextPart{}
			if err := json.Unmarshal(wrapper.Data, &part); err != nil {
				return nil, err
			}
			parts = append(parts, part)
		case binaryType:
			part := BinaryPart{}
			if err := json.Unmarshal(wrapper.Data, &part); err != nil {
				return nil, err
			}
			parts = append(parts, part)
		default:
			return nil, fmt.Errorf("unknown part type: %s", wrapper.Type)
		}
	}

	return parts, nil
}

// Attachment is a file the user attached to a turn, before it is converted
// into a BinaryPart on the provider wire.
type Attachment struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Content  []byte `json:"content"`
}

// IsImage reports whether the attachment should be ordered with images
// (after documents) when building the provider turn.
func (a Attachment) IsImage() bool {
	switch a.MimeType {
	case "image/png", "image/jpeg", "image/webp", "image/heic", "image/heif", "image/gif":
		return true
	}
	return false
}
