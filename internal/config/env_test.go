package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvBase64OrPlain(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		want      string
		wantError bool
	}{
		{
			name:     "plain value",
			envValue: "secret-with-dashes_and_underscores",
			want:     "secret-with-dashes_and_underscores",
		},
		{
			name:     "base64 encoded value",
			envValue: "base64:" + base64.StdEncoding.EncodeToString([]byte("f1132c01b1a625a865c6c455a75ee793")),
			want:     "f1132c01b1a625a865c6c455a75ee793",
		},
		{
			name:     "empty value",
			envValue: "",
			want:     "",
		},
		{
			name:      "invalid base64",
			envValue:  "base64:not-valid-base64!!!",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_SECRET_VALUE", tt.envValue)

			got, err := GetEnvBase64OrPlain("TEST_SECRET_VALUE")
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
