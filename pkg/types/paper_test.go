package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaperInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   PaperInput
		wantErr error
	}{
		{
			name: "valid with defaults",
			input: PaperInput{
				PaperID: "P1",
				Chunks:  []ChunkInput{{Content: "text"}},
			},
		},
		{
			name:  "no chunks is allowed",
			input: PaperInput{PaperID: "P1"},
		},
		{
			name:    "empty paper id",
			input:   PaperInput{PaperID: "  "},
			wantErr: ErrEmptyPaperID,
		},
		{
			name: "blank content",
			input: PaperInput{
				PaperID: "P1",
				Chunks:  []ChunkInput{{Content: "ok"}, {Content: " \n\t"}},
			},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestChunkInputValidateNegativeLevel(t *testing.T) {
	c := ChunkInput{Content: "x", SectionLevel: -1}
	assert.Error(t, c.Validate())
}
