// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package signalclient

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/h264reader"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"
)

var extMimeMapping = map[string]string{
	".ivf":  webrtc.MimeTypeVP8,
	".h264": webrtc.MimeTypeH264,
	".ogg":  webrtc.MimeTypeOpus,
}

func mimeForFile(path string) (string, error) {
	mime, ok := extMimeMapping[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", errors.Errorf("%s has an unsupported extension", filepath.Base(path))
	}
	return mime, nil
}

// TrackWriter paces a media file onto a local track, looping at the end of
// the file. An empty path writes silence or blank frames.
type TrackWriter struct {
	ctx      context.Context
	cancel   context.CancelFunc
	track    *webrtc.TrackLocalStaticSample
	filePath string
	mime     string
	logger   logger.Logger
	onSample func(size int)
	done     chan struct{}
}

func NewTrackWriter(ctx context.Context, track *webrtc.TrackLocalStaticSample, filePath string, l logger.Logger) *TrackWriter {
	ctx, cancel := context.WithCancel(ctx)
	return &TrackWriter{
		ctx:      ctx,
		cancel:   cancel,
		track:    track,
		filePath: filePath,
		mime:     strings.ToLower(track.Codec().MimeType),
		logger:   l.WithValues("trackID", track.ID(), "file", filePath),
		done:     make(chan struct{}),
	}
}

func (w *TrackWriter) Start() error {
	if w.filePath == "" {
		go w.run(w.writeNull)
		return nil
	}

	file, err := os.Open(w.filePath)
	if err != nil {
		return err
	}

	w.logger.Debugw("starting track writer", "mime", w.mime)
	switch w.mime {
	case strings.ToLower(webrtc.MimeTypeOpus):
		ogg, _, err := oggreader.NewWith(file)
		if err != nil {
			_ = file.Close()
			return err
		}
		go w.run(func() error { return w.writeOgg(file, ogg) })
	case strings.ToLower(webrtc.MimeTypeVP8):
		ivf, header, err := ivfreader.NewWith(file)
		if err != nil {
			_ = file.Close()
			return err
		}
		go w.run(func() error { return w.writeVP8(file, ivf, header) })
	case strings.ToLower(webrtc.MimeTypeH264):
		h264, err := h264reader.NewReader(file)
		if err != nil {
			_ = file.Close()
			return err
		}
		go w.run(func() error { return w.writeH264(file, h264) })
	default:
		_ = file.Close()
		return errors.Errorf("unsupported mime type %s", w.mime)
	}
	return nil
}

// Stop ends writing and waits for the writer goroutine to exit.
func (w *TrackWriter) Stop() {
	w.cancel()
	<-w.done
}

func (w *TrackWriter) run(write func() error) {
	defer close(w.done)
	if err := write(); err != nil && w.ctx.Err() == nil {
		w.logger.Errorw("track writer failed", err)
	}
}

func (w *TrackWriter) writeSample(sample media.Sample) error {
	if err := w.track.WriteSample(sample); err != nil {
		return errors.Wrap(err, "could not write sample")
	}
	if w.onSample != nil {
		w.onSample(len(sample.Data))
	}
	return nil
}

func (w *TrackWriter) sleep(d time.Duration) bool {
	select {
	case <-w.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (w *TrackWriter) writeNull() error {
	sample := media.Sample{Data: []byte{0x0, 0xff, 0xff, 0xff, 0xff}, Duration: 30 * time.Millisecond}
	h264Sample := media.Sample{Data: []byte{0x00, 0x00, 0x00, 0x01, 0x7, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01, 0x8, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01, 0x5, 0xff, 0xff, 0xff, 0xff}, Duration: 30 * time.Millisecond}
	for w.sleep(20 * time.Millisecond) {
		s := sample
		if w.mime == strings.ToLower(webrtc.MimeTypeH264) {
			s = h264Sample
		}
		if err := w.writeSample(s); err != nil {
			return err
		}
	}
	return nil
}

func (w *TrackWriter) writeOgg(file *os.File, ogg *oggreader.OggReader) error {
	defer file.Close()

	var lastGranule uint64
	for w.ctx.Err() == nil {
		pageData, pageHeader, err := ogg.ParseNextPage()
		if err == io.EOF {
			w.logger.Debugw("all audio samples sent, looping")
			if ogg, err = w.rewindOgg(file); err != nil {
				return err
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			return errors.Wrap(err, "could not parse ogg page")
		}

		// samples in this page are the granule delta
		sampleCount := float64(pageHeader.GranulePosition - lastGranule)
		lastGranule = pageHeader.GranulePosition
		sampleDuration := time.Duration((sampleCount/48000)*1000) * time.Millisecond

		if err = w.writeSample(media.Sample{Data: pageData, Duration: sampleDuration}); err != nil {
			return err
		}
		if !w.sleep(sampleDuration) {
			return nil
		}
	}
	return nil
}

func (w *TrackWriter) rewindOgg(file *os.File) (*oggreader.OggReader, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	ogg, _, err := oggreader.NewWith(file)
	return ogg, err
}

func (w *TrackWriter) writeVP8(file *os.File, ivf *ivfreader.IVFReader, header *ivfreader.IVFFileHeader) error {
	defer file.Close()

	// pace frames at the file's timebase
	frameDuration := time.Millisecond * time.Duration((float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000)
	for w.ctx.Err() == nil {
		frame, _, err := ivf.ParseNextFrame()
		if err == io.EOF {
			w.logger.Debugw("all video frames sent, looping")
			if _, err = file.Seek(0, io.SeekStart); err != nil {
				return err
			}
			if ivf, _, err = ivfreader.NewWith(file); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return errors.Wrap(err, "could not parse VP8 frame")
		}

		if !w.sleep(frameDuration) {
			return nil
		}
		if err = w.writeSample(media.Sample{Data: frame, Duration: frameDuration}); err != nil {
			return err
		}
	}
	return nil
}

func (w *TrackWriter) writeH264(file *os.File, h264 *h264reader.H264Reader) error {
	defer file.Close()

	const frameDuration = 33 * time.Millisecond
	for w.ctx.Err() == nil {
		nal, err := h264.NextNAL()
		if err == io.EOF {
			if _, err = file.Seek(0, io.SeekStart); err != nil {
				return err
			}
			if h264, err = h264reader.NewReader(file); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return errors.Wrap(err, "could not parse h264 NAL")
		}

		if !w.sleep(frameDuration) {
			return nil
		}
		if err = w.writeSample(media.Sample{Data: nal.Data, Duration: frameDuration}); err != nil {
			return err
		}
	}
	return nil
}
