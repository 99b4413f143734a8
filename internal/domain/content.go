// Message content value types shared between the HTTP layer, the interaction
// handlers, and the delivery engine. Kept separate from the GORM models: a
// MessageContent is what callers hand over, a DeliveryTask row is what the
// ledger stores.
package domain

import "encoding/json"

// KeyboardButton is one inline button. Exactly one of CallbackData or URL
// should be set.
type KeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// InlineKeyboard is rows of inline buttons attached to an outbound message.
type InlineKeyboard [][]KeyboardButton

// Encode serializes the keyboard for storage in a DeliveryTask row.
// A nil or empty keyboard encodes to "".
func (k InlineKeyboard) Encode() string {
	if len(k) == 0 {
		return ""
	}
	b, err := json.Marshal(k)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeKeyboard parses a keyboard previously stored with Encode.
// An empty string yields nil.
func DecodeKeyboard(s string) InlineKeyboard {
	if s == "" {
		return nil
	}
	var k InlineKeyboard
	if err := json.Unmarshal([]byte(s), &k); err != nil {
		return nil
	}
	return k
}

// MessageContent is the payload of one outbound send: text plus an optional
// photo reference and optional inline keyboard.
type MessageContent struct {
	Text     string         `json:"text"`
	PhotoURL string         `json:"photo_url,omitempty"`
	Keyboard InlineKeyboard `json:"keyboard,omitempty"`
}
