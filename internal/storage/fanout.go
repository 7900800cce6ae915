package storage

import (
	"errors"

	"github.com/L1nMay/homeports/internal/model"
)

type DeviceSaver interface {
	SaveDevices(devices []model.DeviceRecord) error
}

// Fanout saves the device set to every saver and joins their errors.
type Fanout []DeviceSaver

func (f Fanout) SaveDevices(devices []model.DeviceRecord) error {
	var errs []error
	for _, s := range f {
		if err := s.SaveDevices(devices); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
