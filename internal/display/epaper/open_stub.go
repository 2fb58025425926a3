//go:build !linux

package epaper

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Open only works on linux, where the SPI and GPIO stacks exist. Other
// platforms get the file sink instead.
func Open(cfg Config, log *logrus.Entry) (*Panel, error) {
	return nil, errors.New("epaper: hardware panel requires linux")
}
