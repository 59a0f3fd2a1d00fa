package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

const (
	wavBitDepth  = 24
	wavPCMFormat = 1
)

// WAVSink writes received frames to a PCM-24 WAV file.
type WAVSink struct {
	path    string
	file    *os.File
	encoder *wav.Encoder
	format  *goaudio.Format
	buf     goaudio.IntBuffer
	frames  uint64
}

// CreateWAV creates path and prepares a WAV encoder for it.
func CreateWAV(path string, sampleRate, channels int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "CreateWAV",
			"path":     path,
			"error":    err.Error(),
		}).Error("Could not create output file")
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	format := &goaudio.Format{NumChannels: channels, SampleRate: sampleRate}
	sink := &WAVSink{
		path:    path,
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, wavBitDepth, channels, wavPCMFormat),
		format:  format,
		buf:     goaudio.IntBuffer{Format: format, SourceBitDepth: wavBitDepth},
	}

	logrus.WithFields(logrus.Fields{
		"function":    "CreateWAV",
		"path":        path,
		"sample_rate": sampleRate,
		"channels":    channels,
	}).Info("Created output file")

	return sink, nil
}

// WriteSamples appends interleaved left-aligned samples.
func (s *WAVSink) WriteSamples(samples []int32) error {
	if len(samples)%s.format.NumChannels != 0 {
		return fmt.Errorf("%d samples is not a whole number of %d-channel frames", len(samples), s.format.NumChannels)
	}
	if cap(s.buf.Data) < len(samples) {
		s.buf.Data = make([]int, len(samples))
	}
	s.buf.Data = s.buf.Data[:len(samples)]
	for i, v := range samples {
		s.buf.Data[i] = int(v >> 8)
	}
	if err := s.encoder.Write(&s.buf); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.frames += uint64(len(samples) / s.format.NumChannels)
	return nil
}

// Frames returns the number of frames written so far.
func (s *WAVSink) Frames() uint64 {
	return s.frames
}

// Close finalizes the WAV header, syncs and closes the file.
func (s *WAVSink) Close() error {
	encErr := s.encoder.Close()
	syncErr := s.file.Sync()
	closeErr := s.file.Close()

	logrus.WithFields(logrus.Fields{
		"function": "WAVSink.Close",
		"path":     s.path,
		"frames":   s.frames,
	}).Info("Closed output file")

	switch {
	case encErr != nil:
		return fmt.Errorf("finalize %s: %w", s.path, encErr)
	case syncErr != nil:
		return fmt.Errorf("sync %s: %w", s.path, syncErr)
	case closeErr != nil:
		return fmt.Errorf("close %s: %w", s.path, closeErr)
	}
	return nil
}
