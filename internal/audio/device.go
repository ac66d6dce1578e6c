package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// DeviceConfig selects the local playback format. A zero SampleRate uses
// the device's native rate.
type DeviceConfig struct {
	SampleRate int
	Channels   int
	Crossfade  time.Duration
}

// Device plays notes on the default sound card.
type Device struct {
	mctx  *malgo.AllocatedContext
	dev   *malgo.Device
	voice *Voice
	name  string

	rate     int
	channels int

	scratchMu sync.Mutex
	scratch   []int16

	closeOnce sync.Once
}

// DeviceInfo describes a playback device.
type DeviceInfo struct {
	Index   int
	Name    string
	Default bool
}

// ListDevices returns the playback devices the audio backend can see.
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("list playback devices: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			Index:   i,
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// OpenDevice starts the default playback device.
func OpenDevice(cfg DeviceConfig, logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Channels <= 0 {
		cfg.Channels = Channels
	}
	log := logger.With("component", "device")

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("malgo", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	d := &Device{mctx: mctx, channels: cfg.Channels, name: "default"}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(max(0, cfg.SampleRate))

	callbacks := malgo.DeviceCallbacks{
		Data: d.onSamples,
	}
	dev, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	d.dev = dev

	d.rate = int(dev.SampleRate())
	if d.rate == 0 {
		d.rate = cfg.SampleRate
	}
	if d.rate == 0 {
		d.rate = SampleRate
	}
	d.voice = NewVoice(d.channels, int(cfg.Crossfade.Seconds()*float64(d.rate)))

	if err := dev.Start(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("start playback device: %w", err)
	}
	return d, nil
}

// onSamples runs on the audio thread.
func (d *Device) onSamples(out, _ []byte, frames uint32) {
	n := int(frames) * d.channels
	if len(out) < n*2 {
		n = len(out) / 2
	}
	d.scratchMu.Lock()
	defer d.scratchMu.Unlock()
	if cap(d.scratch) < n {
		d.scratch = make([]int16, n)
	}
	buf := d.scratch[:n]
	if d.voice == nil {
		clear(buf)
	} else {
		d.voice.Read(buf)
	}
	putSamples(out, buf)
}

func (d *Device) Name() string    { return d.name }
func (d *Device) SampleRate() int { return d.rate }
func (d *Device) Channels() int   { return d.channels }

// Submit replaces the note on the sound card.
func (d *Device) Submit(s Sound) error {
	if d.dev == nil || !d.dev.IsStarted() {
		return errors.New("playback device stopped")
	}
	d.voice.Play(s)
	return nil
}

// Close stops the device and releases the backend.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		if d.dev != nil {
			d.dev.Uninit()
		}
		_ = d.mctx.Uninit()
		d.mctx.Free()
	})
	return nil
}
