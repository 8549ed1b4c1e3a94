package attributes

import (
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/harun/crashkeeper/internal/abi"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

const (
	machineIDPath   = "/etc/machine-id"
	productNamePath = "/sys/devices/virtual/dmi/id/product_name"
	deviceTreeModel = "/proc/device-tree/model"
)

// DeviceProvider reports kernel, architecture and machine identity
type DeviceProvider struct {
	fs       afero.Fs
	uname    func(*unix.Utsname) error
	hostname func() (string, error)
	logger   zerolog.Logger
}

// NewDeviceProvider reads device information from the host
func NewDeviceProvider(fs afero.Fs, logger zerolog.Logger) *DeviceProvider {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DeviceProvider{
		fs:       fs,
		uname:    unix.Uname,
		hostname: os.Hostname,
		logger:   logger.With().Str("component", "attributes").Logger(),
	}
}

// Get implements Provider
func (p *DeviceProvider) Get() map[string]string {
	attrs := map[string]string{
		"os.arch":    runtime.GOARCH,
		"device.abi": string(abi.Current()),
	}

	var uts unix.Utsname
	if err := p.uname(&uts); err == nil {
		attrs["uname.sysname"] = unix.ByteSliceToString(uts.Sysname[:])
		attrs["uname.release"] = unix.ByteSliceToString(uts.Release[:])
		attrs["uname.version"] = unix.ByteSliceToString(uts.Version[:])
		attrs["uname.machine"] = unix.ByteSliceToString(uts.Machine[:])
	} else {
		p.logger.Debug().Err(err).Msg("Cannot read uname")
	}

	if model := p.model(); model != "" {
		attrs["device.model"] = model
	}

	if id := p.readFirstLine(machineIDPath); id != "" {
		attrs["guid"] = uuid.NewMD5(uuid.Nil, []byte(id)).String()
	}

	return attrs
}

func (p *DeviceProvider) model() string {
	for _, path := range []string{deviceTreeModel, productNamePath} {
		if model := p.readFirstLine(path); model != "" {
			return model
		}
	}

	name, err := p.hostname()
	if err != nil {
		p.logger.Debug().Err(err).Msg("Cannot read hostname")
		return ""
	}
	return name
}

func (p *DeviceProvider) readFirstLine(path string) string {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(data), "\n")
	// device tree strings are NUL terminated
	return strings.TrimSpace(strings.TrimRight(line, "\x00"))
}
