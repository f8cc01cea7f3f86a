package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckUpload(t *testing.T) {
	limits := UploadLimits{MaxSize: 5 * 1024 * 1024, AcceptedExtensions: []string{".csv"}}

	tests := []struct {
		name     string
		fileName string
		size     int64
		limits   UploadLimits
		want     error
	}{
		{"accepted", "users.csv", 100, limits, nil},
		{"extension is case-insensitive", "USERS.CSV", 100, limits, nil},
		{"exactly at limit", "users.csv", 5 * 1024 * 1024, limits, nil},
		{"over limit", "users.csv", 5*1024*1024 + 1, limits, ErrSizeLimitExceeded},
		{"wrong extension", "users.xlsx", 100, limits, ErrUnsupportedExtension},
		{"wrong extension wins over size", "users.txt", 10 * 1024 * 1024, limits, ErrUnsupportedExtension},
		{"no name", "", 100, limits, ErrNoFile},
		{"no limits", "anything.bin", 1 << 40, UploadLimits{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUpload(tt.fileName, tt.size, tt.limits)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "CheckUpload() = %v, want %v", err, tt.want)
		})
	}
}

func TestUploadErrorMessages(t *testing.T) {
	sizeErr := CheckUpload("users.csv", 6*1024*1024, UploadLimits{MaxSize: 5 * 1024 * 1024})
	assert.EqualError(t, sizeErr, "File size cannot exceed 5.000MB")

	extErr := CheckUpload("users.txt", 1, UploadLimits{AcceptedExtensions: []string{".csv", ".tsv"}})
	assert.EqualError(t, extErr, "Please upload a file with one of these extensions: .csv, .tsv")
}
