package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docqa/internal/domain"
)

func TestPayloadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.Record
	}{
		{"with page", domain.Record{Text: "alpha", Page: domain.IntPtr(4), DocumentID: "doc-1"}},
		{"without page", domain.Record{Text: "beta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rec, recordFromPayload(payloadFromRecord(tt.rec)))
		})
	}
}

func TestRecordFromPayload_Missing(t *testing.T) {
	assert.Equal(t, domain.Record{}, recordFromPayload(nil))
}
