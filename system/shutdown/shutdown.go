package shutdown

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/gpio"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

// Shutdown drives every relay inactive. It keeps going past failures and
// returns them together.
func Shutdown(io gpio.DigitalIO, relays map[string]model.GPIOPin) error {
	var errs []error
	for name, pin := range relays {
		if err := gpio.Deactivate(io, pin); err != nil {
			log.Error().Err(err).Str("relay", name).Msg("Failed to deactivate relay on shutdown")
			errs = append(errs, err)
			continue
		}
		log.Info().Str("relay", name).Int("pin", pin.Number).Msg("Relay deactivated")
	}
	return errors.Join(errs...)
}

func ShutdownWithError(io gpio.DigitalIO, relays map[string]model.GPIOPin, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	if serr := Shutdown(io, relays); serr != nil {
		log.Error().Err(serr).Msg("Shutdown incomplete")
	}
}
