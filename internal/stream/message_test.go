package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionEvent(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]string
		want    string
		wantErr bool
	}{
		{name: "flat field", fields: map[string]string{"doc_version_id": " v1 "}, want: "v1"},
		{name: "json payload", fields: map[string]string{"payload": `{"doc_version_id": "v2"}`}, want: "v2"},
		{name: "flat field wins", fields: map[string]string{"doc_version_id": "v1", "payload": `{"doc_version_id": "v2"}`}, want: "v1"},
		{name: "empty payload id", fields: map[string]string{"payload": `{"doc_version_id": ""}`}, wantErr: true},
		{name: "bad payload", fields: map[string]string{"payload": `{`}, wantErr: true},
		{name: "no fields", fields: map[string]string{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseVersionEvent(&StreamMessage{ID: "1-0", Fields: tt.fields})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.DocumentVersionID)
		})
	}
}

func TestStringFields(t *testing.T) {
	fields := stringFields(map[string]interface{}{"doc_version_id": "v1", "attempt": 3})

	assert.Equal(t, map[string]string{"doc_version_id": "v1"}, fields)
}
