package capability

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const DefaultSampleRate = 16000

var errNotWAV = errors.New("not a RIFF/WAVE payload")

// SilentWAV 產生單聲道 16-bit PCM 的靜音 WAV
func SilentWAV(sampleRate int, duration time.Duration) []byte {
	samples := int(int64(sampleRate) * int64(duration) / int64(time.Second))
	return EncodeWAV(make([]byte, samples*2), sampleRate)
}

// EncodeWAV 為單聲道 16-bit PCM 資料加上 WAV 標頭
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// PCMFromWAV 取出 data chunk；輸入不是 WAV 時回傳 errNotWAV
func PCMFromWAV(payload []byte) ([]byte, error) {
	if len(payload) < 12 || string(payload[0:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return nil, errNotWAV
	}

	offset := 12
	for offset+8 <= len(payload) {
		id := string(payload[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(payload[offset+4 : offset+8]))
		body := offset + 8
		if id == "data" {
			end := body + size
			if end > len(payload) || size < 0 {
				end = len(payload)
			}
			return payload[body:end], nil
		}
		offset = body + size + size%2
	}
	return nil, errNotWAV
}

// AudioPayload 接受 WAV 或原始 PCM，統一回傳 PCM
func AudioPayload(payload []byte) []byte {
	if pcm, err := PCMFromWAV(payload); err == nil {
		return pcm
	}
	return payload
}
