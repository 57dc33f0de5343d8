package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentes-service/internal/domain/detection"
)

func strPtr(s string) *string { return &s }

func TestGuessExtension(t *testing.T) {
	tests := []struct {
		name      string
		fileName  *string
		imageType detection.ImageType
		want      string
	}{
		{"known extension from file name", strPtr("capture.JPG"), detection.ImageTypePlate, ".jpg"},
		{"png from file name", strPtr("shot.png"), detection.ImageTypePlate, ".png"},
		{"unrecognized extension ignored", strPtr("dump.raw"), detection.ImageTypePlate, ".bin"},
		{"no file name, jpeg in type", nil, "vehicle_jpeg", ".jpeg"},
		{"no file name, png in type", nil, "png_capture", ".png"},
		{"nothing recognizable", nil, detection.ImageTypePlate, ".bin"},
		{"file name without dot", strPtr("capture"), detection.ImageTypeVehiclePicture, ".bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessExtension(tt.fileName, tt.imageType))
		})
	}
}

func TestTimestampStateRoundTrip(t *testing.T) {
	d := &Downloader{stateFile: filepath.Join(t.TempDir(), "state.txt")}

	// Missing file means "from the beginning".
	got, err := d.readLastTimestamp()
	require.NoError(t, err)
	assert.Nil(t, got)

	ts := time.Date(2024, 3, 15, 12, 0, 0, 123456000, time.UTC)
	require.NoError(t, d.writeLastTimestamp(ts))

	got, err = d.readLastTimestamp()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, ts.Equal(*got))
}

func TestReadLastTimestampRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	d := &Downloader{stateFile: filepath.Join(dir, "state.txt")}
	require.NoError(t, os.WriteFile(d.stateFile, []byte("not-a-timestamp"), 0o644))

	_, err := d.readLastTimestamp()
	assert.Error(t, err)
}
