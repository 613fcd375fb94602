package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadBandConfig(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		want     *domain.BandConfig
		wantType apperrors.ErrorType
		wantMsg  string
	}{
		{
			name: "json",
			file: "configuration.json",
			content: `{
  "percentage": 0.25,
  "data_groups_explanation": [
    {"name": "low", "from": 0, "to": 50},
    {"name": "high", "from": 50, "to": 0}
  ]
}`,
			want: &domain.BandConfig{
				Percentage: 0.25,
				Bands: []domain.Band{
					{Name: "low", From: 0, To: 50},
					{Name: "high", From: 50, To: 0},
				},
			},
		},
		{
			name: "yaml",
			file: "bands.yaml",
			content: `percentage: 1
data_groups_explanation:
  - name: all
`,
			want: &domain.BandConfig{Percentage: 1, Bands: []domain.Band{{Name: "all"}}},
		},
		{
			name:    "overlapping bands are allowed",
			file:    "overlap.json",
			content: `{"percentage": 0.5, "data_groups_explanation": [{"name": "a", "from": 0, "to": 60}, {"name": "b", "from": 40, "to": 0}]}`,
			want:    &domain.BandConfig{Percentage: 0.5, Bands: []domain.Band{{Name: "a", To: 60}, {Name: "b", From: 40}}},
		},
		{
			name:     "percentage zero",
			file:     "zero.json",
			content:  `{"percentage": 0, "data_groups_explanation": [{"name": "a"}]}`,
			wantType: apperrors.ErrTypeInvalidPercentage,
			wantMsg:  "percentage must be greater than 0",
		},
		{
			name:     "percentage above one",
			file:     "big.json",
			content:  `{"percentage": 1.5, "data_groups_explanation": [{"name": "a"}]}`,
			wantType: apperrors.ErrTypeInvalidPercentage,
			wantMsg:  "less than or equal to 1",
		},
		{
			name:     "no bands",
			file:     "none.json",
			content:  `{"percentage": 0.5, "data_groups_explanation": []}`,
			wantType: apperrors.ErrTypeConfig,
			wantMsg:  "at least 1",
		},
		{
			name:     "duplicate names",
			file:     "dup.json",
			content:  `{"percentage": 0.5, "data_groups_explanation": [{"name": "a"}, {"name": "a", "from": 3}]}`,
			wantType: apperrors.ErrTypeConfig,
			wantMsg:  "unique",
		},
		{
			name:     "missing name",
			file:     "noname.json",
			content:  `{"percentage": 0.5, "data_groups_explanation": [{"from": 1, "to": 2}]}`,
			wantType: apperrors.ErrTypeConfig,
			wantMsg:  "name is required",
		},
		{
			name:     "inverted band",
			file:     "inverted.json",
			content:  `{"percentage": 0.5, "data_groups_explanation": [{"name": "a", "from": 10, "to": 5}]}`,
			wantType: apperrors.ErrTypeConfig,
			wantMsg:  "to must be greater than from",
		},
		{
			name:     "malformed json",
			file:     "broken.json",
			content:  `{"percentage":`,
			wantType: apperrors.ErrTypeConfig,
			wantMsg:  "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadBandConfig(writeFile(t, tt.file, tt.content))
			if tt.want != nil {
				require.NoError(t, err)
				assert.Equal(t, tt.want, cfg)
				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadBandConfig_MissingFile(t *testing.T) {
	_, err := LoadBandConfig(filepath.Join(t.TempDir(), "configuration.json"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeConfig, appErr.Type)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidateBandConfig_InvalidPercentageSentinel(t *testing.T) {
	err := ValidateBandConfig(&domain.BandConfig{Percentage: -1, Bands: []domain.Band{{Name: "a"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPercentage))
}
