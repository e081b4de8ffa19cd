package capture

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDisplay(t *testing.T) {
	tests := []struct {
		ident   string
		want    Target
		matched bool
		wantErr bool
	}{
		{ident: "display:0", want: Target{Kind: KindDisplay, ID: 0}, matched: true},
		{ident: "display:2", want: Target{Kind: KindDisplay, ID: 2}, matched: true},
		{ident: "display:x", matched: true, wantErr: true},
		{ident: "display:-1", matched: true, wantErr: true},
		{ident: "com.apple.iphonesimulator"},
	}
	for _, tt := range tests {
		t.Run(tt.ident, func(t *testing.T) {
			got, ok, err := ParseDisplay(tt.ident)
			assert.Equal(t, tt.matched, ok)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "display:1", Target{Kind: KindDisplay, ID: 1}.String())
	assert.Equal(t, "window:4242", Target{Kind: KindWindow, ID: 4242}.String())
}

func TestFrameDimensions(t *testing.T) {
	f := Frame{Image: image.NewRGBA(image.Rect(0, 0, 32, 18))}
	assert.Equal(t, 32, f.Width())
	assert.Equal(t, 18, f.Height())
}
