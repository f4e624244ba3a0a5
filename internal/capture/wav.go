package capture

import (
	"bytes"
	"encoding/binary"
)

const (
	wavPCMFormat     = 1
	wavBitsPerSample = 16
)

// EncodeWAV wraps PCM s16le data in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	byteRate := sampleRate * channels * BytesPerSample

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavPCMFormat))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*BytesPerSample))
	binary.Write(&buf, binary.LittleEndian, uint16(wavBitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// Transcoder converts a finished WAV clip into the upload format.
type Transcoder interface {
	Transcode(data []byte, mimeType string) ([]byte, string, error)
}

// PassthroughTranscoder uploads the WAV container unchanged.
type PassthroughTranscoder struct{}

// Transcode returns its input.
func (PassthroughTranscoder) Transcode(data []byte, mimeType string) ([]byte, string, error) {
	return data, mimeType, nil
}
