// SPDX-License-Identifier: MIT
package audiotest

import (
	"fmt"

	"sinplayer/internal/decode"
)

// Reader is an in-memory decode.Reader keyed by path.
type Reader struct {
	Files map[string]*decode.Audio
}

func NewReader() *Reader {
	return &Reader{Files: make(map[string]*decode.Audio)}
}

// Add registers channels under path at sampleRate.
func (r *Reader) Add(path string, sampleRate int, channels ...[]float32) {
	r.Files[path] = &decode.Audio{Channels: channels, SampleRate: sampleRate}
}

func (r *Reader) Read(path string) (*decode.Audio, error) {
	a, ok := r.Files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no such file", decode.ErrInvalidFile, path)
	}
	return a, nil
}
