// Package audio handles PCM accumulation, utterance segmentation and the
// format conversions needed by the recognition and phone-bridge paths.
package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// dynamicDamping controls how quickly the energy threshold adapts to the
// ambient noise floor while nobody is speaking.
const dynamicDamping = 0.9

// Utterance is one segmented stretch of speech ready for recognition.
type Utterance struct {
	PCM        []byte // PCM16 little-endian mono
	SampleRate int
	Duration   time.Duration
}

// SegmenterConfig mirrors the recognizer tuning knobs: a speech segment
// starts when chunk energy crosses EnergyThreshold and ends after
// PauseThreshold seconds of quiet or when PhraseTimeLimit is reached.
type SegmenterConfig struct {
	SampleRate      int
	EnergyThreshold float64
	DynamicEnergy   bool
	PauseThreshold  float64 // seconds of quiet that end an utterance
	PhraseTimeLimit float64 // hard cap on utterance length, seconds
}

// Segmenter turns a continuous PCM16 stream into discrete utterances.
// Write feeds audio in; completed utterances appear on Utterances. It is
// not safe for concurrent Write calls; a session owns one segmenter.
type Segmenter struct {
	cfg        SegmenterConfig
	Utterances chan Utterance

	threshold  float64
	inSpeech   bool
	buf        []byte
	quietBytes int

	done      chan struct{}
	closeOnce sync.Once
}

// NewSegmenter creates a segmenter with the given tuning. SampleRate must
// match the stream fed to Write.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.PauseThreshold <= 0 {
		cfg.PauseThreshold = 0.8
	}
	if cfg.PhraseTimeLimit <= 0 {
		cfg.PhraseTimeLimit = 10
	}
	return &Segmenter{
		cfg:        cfg,
		Utterances: make(chan Utterance, 8),
		threshold:  cfg.EnergyThreshold,
		done:       make(chan struct{}),
	}
}

// Write consumes one chunk of PCM16 little-endian mono audio.
func (s *Segmenter) Write(chunk []byte) {
	if len(chunk) < 2 {
		return
	}
	energy := RMS(chunk)

	if !s.inSpeech {
		if s.cfg.DynamicEnergy && energy < s.threshold {
			// Track the ambient noise floor so a noisy room does not
			// trigger endless utterances.
			s.threshold = s.threshold*dynamicDamping + energy*(1-dynamicDamping)
			if s.threshold < s.cfg.EnergyThreshold {
				s.threshold = s.cfg.EnergyThreshold
			}
		}
		if energy >= s.threshold {
			s.inSpeech = true
			s.buf = append(s.buf[:0], chunk...)
			s.quietBytes = 0
		}
		return
	}

	s.buf = append(s.buf, chunk...)
	if energy < s.threshold {
		s.quietBytes += len(chunk)
	} else {
		s.quietBytes = 0
	}

	bytesPerSecond := float64(s.cfg.SampleRate * 2)
	quietSeconds := float64(s.quietBytes) / bytesPerSecond
	totalSeconds := float64(len(s.buf)) / bytesPerSecond

	if quietSeconds >= s.cfg.PauseThreshold || totalSeconds >= s.cfg.PhraseTimeLimit {
		s.emit()
	}
}

// Flush emits whatever speech is buffered, ending the current utterance.
func (s *Segmenter) Flush() {
	if s.inSpeech && len(s.buf) > s.quietBytes {
		s.emit()
	}
	s.inSpeech = false
	s.buf = s.buf[:0]
}

// Close flushes buffered speech if the channel has room and closes the
// Utterances channel. It never blocks, even with no consumer left, and is
// safe to call more than once.
func (s *Segmenter) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.Flush()
		close(s.Utterances)
	})
}

func (s *Segmenter) emit() {
	// Trim the trailing quiet tail; it carries no speech.
	speech := s.buf[:len(s.buf)-s.quietBytes]
	if len(speech) >= 2 {
		pcm := make([]byte, len(speech))
		copy(pcm, speech)
		s.send(Utterance{
			PCM:        pcm,
			SampleRate: s.cfg.SampleRate,
			Duration:   time.Duration(float64(len(pcm)) / float64(s.cfg.SampleRate*2) * float64(time.Second)),
		})
	}
	s.inSpeech = false
	s.buf = s.buf[:0]
	s.quietBytes = 0
}

// send blocks for backpressure while the segmenter is live. Once Close has
// run it delivers only if the channel has room, so a full channel with no
// consumer cannot wedge the caller.
func (s *Segmenter) send(u Utterance) {
	select {
	case <-s.done:
		select {
		case s.Utterances <- u:
		default:
		}
		return
	default:
	}
	select {
	case s.Utterances <- u:
	case <-s.done:
	}
}

// RMS computes the root-mean-square energy of a PCM16LE chunk, on the same
// scale as the configured energy threshold.
func RMS(chunk []byte) float64 {
	n := len(chunk) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(chunk[2*i:]))
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}
