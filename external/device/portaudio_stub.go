//go:build !portaudio

package device

import (
	"context"
	"errors"

	"github.com/foxseedlab/jimakun/internal/capture"
)

var errPortAudioUnavailable = errors.New("portaudio support not built in; rebuild with -tags portaudio")

type PortAudioDriver struct{}

func NewPortAudioDriver() *PortAudioDriver {
	return &PortAudioDriver{}
}

func (d *PortAudioDriver) Init() error {
	return errPortAudioUnavailable
}

func (d *PortAudioDriver) Open(context.Context, capture.Constraints, capture.Handler) (capture.Stream, error) {
	return nil, errPortAudioUnavailable
}

func (d *PortAudioDriver) Terminate() error {
	return nil
}

func (d *PortAudioDriver) Devices() ([]capture.DeviceInfo, error) {
	return nil, errPortAudioUnavailable
}
