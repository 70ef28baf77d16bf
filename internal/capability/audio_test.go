package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// mp3Frames 產生以指定 frame 標頭開頭、總長 size 的假 MP3 資料
func mp3Frames(header []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, header)
	return out
}

func TestPrepareAudio(t *testing.T) {
	id3 := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x0a"), make([]byte, 10)...)

	tests := []struct {
		name        string
		payload     []byte
		ext         string
		contentType string
		duration    float64
		wrapped     bool
	}{
		{"wav header", SilentWAV(16000, time.Second), ".wav", "audio/wav", 1.0, false},
		{"wav at 24kHz", SilentWAV(24000, 500*time.Millisecond), ".wav", "audio/wav", 0.5, false},
		{"mpeg1 128kbps", mp3Frames([]byte{0xff, 0xfb, 0x90, 0x00}, 16000), ".mp3", "audio/mpeg", 1.0, false},
		{"mpeg2 32kbps", mp3Frames([]byte{0xff, 0xf3, 0x40, 0x00}, 8000), ".mp3", "audio/mpeg", 2.0, false},
		{"id3 tagged", append(id3, mp3Frames([]byte{0xff, 0xfb, 0x90, 0x00}, 16000)...), ".mp3", "audio/mpeg", 1.0, false},
		{"raw pcm", make([]byte, 32000), ".wav", "audio/wav", 1.0, true},
		{"broken riff", []byte("RIFF[en] Bonjour"), ".wav", "audio/wav", 16.0 / 32000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, format := PrepareAudio(tt.payload)

			assert.Equal(t, tt.ext, format.Ext)
			assert.Equal(t, tt.contentType, format.ContentType)
			assert.InDelta(t, tt.duration, format.Duration, 0.001)
			if tt.wrapped {
				assert.Equal(t, EncodeWAV(tt.payload, DefaultSampleRate), data)
			} else {
				assert.Equal(t, tt.payload, data)
			}
		})
	}
}

func TestPrepareAudioEmpty(t *testing.T) {
	data, format := PrepareAudio(nil)
	assert.Nil(t, data)
	assert.Zero(t, format.Duration)
}

func TestAudioContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", AudioContentType("conversations/2026/10/19/conversation_a_b_c.mp3"))
	assert.Equal(t, "audio/wav", AudioContentType("conversation_a_b_c.wav"))
}
