//go:build linux

package epaper

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/waveshare2in13v2"
	"periph.io/x/host/v3"
)

// Open initializes the periph host, opens the SPI port and brings the
// panel out of reset.
func Open(cfg Config, log *logrus.Entry) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epaper: host init: %w", err)
	}

	port, err := spireg.Open(cfg.SPI)
	if err != nil {
		return nil, fmt.Errorf("epaper: opening SPI port %q: %w", cfg.SPI, err)
	}

	dev, err := waveshare2in13v2.NewHat(port, &waveshare2in13v2.EPD2in13v2)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("epaper: probing panel: %w", err)
	}
	if err := dev.Init(); err != nil {
		port.Close()
		return nil, fmt.Errorf("epaper: panel init: %w", err)
	}

	log.Infof("e-paper panel up on %s, bounds %v", cfg.SPI, dev.Bounds())
	return New(dev, cfg.RefreshTimeout, log, port), nil
}
