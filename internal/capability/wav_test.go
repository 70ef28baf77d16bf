package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilentWAV(t *testing.T) {
	wav := SilentWAV(16000, 500*time.Millisecond)

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Len(t, wav, 44+16000)

	pcm, err := PCMFromWAV(wav)
	require.NoError(t, err)
	assert.Len(t, pcm, 16000)
	for _, b := range pcm {
		if b != 0 {
			t.Fatal("silent audio must be all zero samples")
		}
	}
}

func TestAudioPayloadPassesRawPCM(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	assert.Equal(t, raw, AudioPayload(raw))
	assert.Equal(t, raw, AudioPayload(EncodeWAV(raw, 16000)))
}

func TestPCMFromWAVRejectsGarbage(t *testing.T) {
	_, err := PCMFromWAV([]byte("RIFF0000WAVEjunk"))
	assert.Error(t, err)
	_, err = PCMFromWAV(nil)
	assert.Error(t, err)
}

func TestLanguages(t *testing.T) {
	assert.Len(t, Languages(), 10)
	assert.True(t, IsSupported("ko"))
	assert.False(t, IsSupported("xx"))

	l, ok := LookupLanguage("zh")
	require.True(t, ok)
	assert.Equal(t, "cmn-CN-Standard-A", l.Voice)

	assert.Equal(t, "fr-FR", locale("xx", "fr"))
}
