// Package audio provides the PCM audio container helpers used by the relay
// pipeline. Synthesized speech arrives from TTS providers as raw little-endian
// 16-bit PCM; before delivery to a participant it is wrapped into a canonical
// 44-byte WAV container so that browsers can play it without further metadata.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// headerSize is the fixed size of the canonical WAV header in bytes.
const headerSize = 44

// wavHeader is the canonical 44-byte RIFF/WAVE header for uncompressed
// mono 16-bit PCM. Field order matches the on-disk layout exactly so the
// struct can be written with a single binary.Write.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // total file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 = linear PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample/8
	BlockAlign    uint16 // NumChannels * BitsPerSample/8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // payload size in bytes
}

// Format describes decoded WAV stream parameters.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// WrapPCM wraps raw little-endian 16-bit mono PCM bytes into a WAV container
// at the given sample rate. The payload is copied verbatim after the header.
func WrapPCM(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio: cannot wrap empty PCM payload")
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("audio: PCM payload has odd byte count %d", len(pcm))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}

	const (
		channels      = uint16(1)
		bitsPerSample = uint16(16)
	)
	dataSize := uint32(len(pcm))

	hdr := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(headerSize-8) + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(channels) * uint32(bitsPerSample) / 8,
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("audio: write WAV header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// UnwrapPCM parses a WAV container produced by [WrapPCM] and returns the
// stream format and the raw PCM payload. It validates the RIFF/WAVE magic
// values and that the declared data size matches the actual payload length.
func UnwrapPCM(data []byte) (Format, []byte, error) {
	if len(data) < headerSize {
		return Format{}, nil, fmt.Errorf("audio: WAV data too short: %d bytes", len(data))
	}

	var hdr wavHeader
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &hdr); err != nil {
		return Format{}, nil, fmt.Errorf("audio: read WAV header: %w", err)
	}

	if string(hdr.ChunkID[:]) != "RIFF" || string(hdr.Format[:]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("audio: not a RIFF/WAVE container")
	}
	if string(hdr.Subchunk2ID[:]) != "data" {
		return Format{}, nil, fmt.Errorf("audio: missing data chunk")
	}
	if hdr.AudioFormat != 1 {
		return Format{}, nil, fmt.Errorf("audio: unsupported audio format %d (want PCM)", hdr.AudioFormat)
	}

	payload := data[headerSize:]
	if int(hdr.Subchunk2Size) != len(payload) {
		return Format{}, nil, fmt.Errorf("audio: data chunk declares %d bytes, payload has %d",
			hdr.Subchunk2Size, len(payload))
	}

	f := Format{
		SampleRate: int(hdr.SampleRate),
		Channels:   int(hdr.NumChannels),
		BitDepth:   int(hdr.BitsPerSample),
	}
	return f, payload, nil
}
