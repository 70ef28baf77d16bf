package capability

import (
	"encoding/binary"
	"path"
)

// AudioFormat 是一段語音的容器格式與長度
type AudioFormat struct {
	Ext         string
	ContentType string
	Duration    float64 // 秒
}

var (
	formatWAV = AudioFormat{Ext: ".wav", ContentType: "audio/wav"}
	formatMP3 = AudioFormat{Ext: ".mp3", ContentType: "audio/mpeg"}
)

// kbps，索引為 frame 標頭中的 bitrate index
var (
	mpeg1Layer3Bitrates = [15]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}
	mpeg2Layer3Bitrates = [15]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160}
)

// PrepareAudio 判斷語音的格式與長度。WAV 依標頭計算，MP3 以第一個 frame 的位元率估算，
// 其餘視為 16kHz 16-bit 單聲道 PCM 並補上 WAV 標頭。
func PrepareAudio(payload []byte) ([]byte, AudioFormat) {
	if len(payload) == 0 {
		return nil, formatWAV
	}
	if byteRate, dataLen, ok := wavLayout(payload); ok {
		f := formatWAV
		if byteRate > 0 {
			f.Duration = float64(dataLen) / float64(byteRate)
		}
		return payload, f
	}
	if offset, kbps, ok := mp3Layout(payload); ok {
		f := formatMP3
		if kbps > 0 {
			f.Duration = float64(len(payload)-offset) * 8 / float64(kbps*1000)
		}
		return payload, f
	}

	f := formatWAV
	f.Duration = float64(len(payload)) / float64(DefaultSampleRate*2)
	return EncodeWAV(payload, DefaultSampleRate), f
}

// AudioContentType 依檔名副檔名回傳 Content-Type
func AudioContentType(name string) string {
	if path.Ext(name) == formatMP3.Ext {
		return formatMP3.ContentType
	}
	return formatWAV.ContentType
}

// wavLayout 回傳 fmt chunk 的 byte rate 與 data chunk 的長度
func wavLayout(payload []byte) (byteRate, dataLen int, ok bool) {
	if len(payload) < 12 || string(payload[0:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return 0, 0, false
	}

	offset := 12
	for offset+8 <= len(payload) {
		id := string(payload[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(payload[offset+4 : offset+8]))
		body := offset + 8
		switch id {
		case "fmt ":
			if body+12 <= len(payload) {
				byteRate = int(binary.LittleEndian.Uint32(payload[body+8 : body+12]))
			}
		case "data":
			dataLen = size
			if body+size > len(payload) || size < 0 {
				dataLen = len(payload) - body
			}
			return byteRate, dataLen, true
		}
		offset = body + size + size%2
	}
	return 0, 0, false
}

// mp3Layout 略過 ID3v2 標籤後解析第一個 Layer III frame 標頭
func mp3Layout(payload []byte) (offset, kbps int, ok bool) {
	tagged := false
	if len(payload) >= 10 && string(payload[0:3]) == "ID3" {
		size := int(payload[6]&0x7f)<<21 | int(payload[7]&0x7f)<<14 | int(payload[8]&0x7f)<<7 | int(payload[9]&0x7f)
		offset = 10 + size
		tagged = true
	}
	if offset+4 > len(payload) || payload[offset] != 0xff || payload[offset+1]&0xe0 != 0xe0 {
		return offset, 0, tagged
	}

	version := (payload[offset+1] >> 3) & 0x03
	layer := (payload[offset+1] >> 1) & 0x03
	index := int(payload[offset+2] >> 4)
	if version == 1 || layer != 1 || index == 0 || index == 15 {
		// 有 frame sync 但不是可估算的 Layer III
		return offset, 0, true
	}
	if version == 3 {
		return offset, mpeg1Layer3Bitrates[index], true
	}
	return offset, mpeg2Layer3Bitrates[index], true
}
