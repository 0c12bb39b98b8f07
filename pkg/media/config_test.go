package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigAllowed(t *testing.T) {
	config := DefaultConfig()

	assert.True(t, config.Allowed("call.wav"))
	assert.True(t, config.Allowed("CALL.MP3"))
	assert.True(t, config.Allowed("/tmp/x/recording.webm"))
	assert.False(t, config.Allowed("notes.txt"))
	assert.False(t, config.Allowed("noextension"))

	config.AllowedExtensions = []string{".wav"}
	assert.True(t, config.Allowed("a.wav"))
	assert.False(t, config.Allowed("a.mp3"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "m4a", Extension("Voice Memo.M4A"))
	assert.Equal(t, "", Extension("README"))
}
