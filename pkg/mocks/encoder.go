package mocks

import (
	"image"

	"github.com/user/runcompare/pkg/ports"
)

// VideoEncoder is a mock implementation of ports.VideoEncoder.
type VideoEncoder struct {
	BeginFunc       func(outputPath string, width, height int, fps float64, opts ports.EncoderOptions) error
	EncodeFrameFunc func(img image.Image, timestampMs int) error
	EndFunc         func() error

	// Recorded calls for verification
	BeginCalled      bool
	OutputPath       string
	Width, Height    int
	EncodeFrameCalls []EncodeFrameCall
	EndCalled        bool
	AbortCalled      bool
}

// EncodeFrameCall records a call to EncodeFrame.
type EncodeFrameCall struct {
	TimestampMs int
}

func (m *VideoEncoder) Begin(outputPath string, width, height int, fps float64, opts ports.EncoderOptions) error {
	m.BeginCalled = true
	m.OutputPath = outputPath
	m.Width, m.Height = width, height
	if m.BeginFunc != nil {
		return m.BeginFunc(outputPath, width, height, fps, opts)
	}
	return nil
}

func (m *VideoEncoder) EncodeFrame(img image.Image, timestampMs int) error {
	m.EncodeFrameCalls = append(m.EncodeFrameCalls, EncodeFrameCall{TimestampMs: timestampMs})
	if m.EncodeFrameFunc != nil {
		return m.EncodeFrameFunc(img, timestampMs)
	}
	return nil
}

func (m *VideoEncoder) End() error {
	m.EndCalled = true
	if m.EndFunc != nil {
		return m.EndFunc()
	}
	return nil
}

func (m *VideoEncoder) Abort() {
	m.AbortCalled = true
}

var _ ports.VideoEncoder = (*VideoEncoder)(nil)
