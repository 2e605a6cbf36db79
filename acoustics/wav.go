package acoustics

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Signal is a mono waveform scaled to [-1, 1].
type Signal struct {
	SampleRate int
	Samples    []float64
}

func (s Signal) Seconds() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// ReadWav decodes a PCM WAV file and downmixes it to mono.
func ReadWav(path string) (Signal, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Signal{}, err
	}
	defer fh.Close()

	d := wav.NewDecoder(fh)
	if !d.IsValidFile() {
		return Signal{}, fmt.Errorf("%s: not a valid wav file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("%s: %w", path, err)
	}

	ch := int(d.NumChans)
	if ch < 1 {
		return Signal{}, errors.New("wav: no channels")
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	scale := float64(int64(1) << (depth - 1))

	n := len(buf.Data) / ch
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		mono[i] = sum / float64(ch) / scale
	}
	return Signal{SampleRate: int(d.SampleRate), Samples: mono}, nil
}
