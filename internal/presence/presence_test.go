package presence

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	avatars map[string]string
	calls   int
}

func (m *mockStore) SetRemoteAvatar(connectionID, url string) bool {
	m.calls++
	if _, ok := m.avatars[connectionID]; !ok {
		return false
	}
	m.avatars[connectionID] = url
	return true
}

func TestEncode(t *testing.T) {
	data, err := Encode(NewMessage("https://example.com/a.png", false))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &raw))
	assert.Equal(t, "https://example.com/a.png", raw["avatar"])
	assert.Equal(t, false, raw["platformIsMobile"])
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("not json")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode(`"a string"`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name        string
		from        string
		data        string
		wantUpdated bool
		wantErr     bool
		wantAvatar  string
	}{
		{
			name:        "known sender with avatar",
			from:        "con_1",
			data:        `{"avatar":"b.png","platformIsMobile":true}`,
			wantUpdated: true,
			wantAvatar:  "b.png",
		},
		{
			name:       "known sender without avatar",
			from:       "con_1",
			data:       `{"platformIsMobile":true}`,
			wantAvatar: "a.png",
		},
		{
			name:       "unknown sender",
			from:       "con_9",
			data:       `{"avatar":"b.png","platformIsMobile":false}`,
			wantAvatar: "a.png",
		},
		{
			name:       "malformed payload",
			from:       "con_1",
			data:       `{"avatar":`,
			wantErr:    true,
			wantAvatar: "a.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{avatars: map[string]string{"con_1": "a.png"}}

			updated, err := Handle(store, tt.from, tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				assert.Zero(t, store.calls)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUpdated, updated)
			assert.Equal(t, tt.wantAvatar, store.avatars["con_1"])
			assert.Len(t, store.avatars, 1)
		})
	}
}
