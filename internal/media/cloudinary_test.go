package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "versioned upload",
			url:  "https://res.cloudinary.com/demo/image/upload/v1700000000/user_profiles/abc123.jpg",
			want: "user_profiles/abc123",
		},
		{
			name: "no version segment",
			url:  "https://res.cloudinary.com/demo/image/upload/user_profiles/abc123.png",
			want: "user_profiles/abc123",
		},
		{
			name: "nested folder",
			url:  "https://res.cloudinary.com/demo/image/upload/v1/a/b/c.webp",
			want: "a/b/c",
		},
		{
			name: "not a cloudinary upload",
			url:  "https://i.pinimg.com/236x/2c/47/d5/2c47d5dd5b532f83bb55c4cd6f5bd1ef.jpg",
			want: "",
		},
		{
			name: "empty",
			url:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicIDFromURL(tt.url))
		})
	}
}

func TestSignSortsParams(t *testing.T) {
	c := NewCloudinary("demo", "key", "secret", "folder")

	a := c.sign(map[string]string{"timestamp": "123", "folder": "folder"})
	b := c.sign(map[string]string{"folder": "folder", "timestamp": "123"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 40) // hex-encoded SHA-1
}
