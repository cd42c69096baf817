package ff

import (
	"errors"
	"log"
)

// Dispatch applies one virtual device request to m and fans it out to every
// device. A device that reports a disconnect is reopened and resynchronized,
// then the request is retried once unless the resync already covered it.
// Failures are logged per device and never stop the fan-out.
func Dispatch(req Request, m *Manager, devs []*Device) {
	switch req.Kind {
	case RequestUpload:
		m.Upload(req.ID, req.Effect)
	case RequestPlay:
		m.SetPlaying(req.ID, req.Value > 0)
	case RequestGain:
		m.SetGain(uint16(req.Value))
	case RequestAutocenter:
		m.SetAutocenter(uint16(req.Value))
	}

	for _, d := range devs {
		if d.Recovering() {
			if !recoverDevice(d, m) {
				continue
			}
			if coveredBySync(req, d) {
				continue
			}
		}

		err := apply(d, req)
		if IsDisconnect(err) {
			log.Printf("FF: %s disconnected, reopening", d)
			if !recoverDevice(d, m) {
				continue
			}
			if coveredBySync(req, d) {
				continue
			}
			err = apply(d, req)
		}
		if err != nil {
			log.Printf("FF: %s failed: %v", req.Kind, err)
		}
	}

	// devices drop an effect before the manager so the manager never holds
	// less than any device
	if req.Kind == RequestErase {
		m.Erase(req.ID)
	}
}

func apply(d *Device, req Request) error {
	switch req.Kind {
	case RequestUpload:
		return d.UploadEffect(req.ID, req.Effect)
	case RequestErase:
		return d.EraseEffect(req.ID)
	case RequestPlay:
		return d.ControlEffect(req.ID, req.Value > 0)
	case RequestGain:
		return d.SetGain(uint16(req.Value))
	case RequestAutocenter:
		return d.SetAutocenter(uint16(req.Value))
	}
	return nil
}

// coveredBySync reports whether a fresh resync already did what req asks.
func coveredBySync(req Request, d *Device) bool {
	switch req.Kind {
	case RequestUpload:
		return d.Has(req.ID)
	case RequestPlay:
		return req.Value > 0
	case RequestGain, RequestAutocenter:
		return true
	}
	return false
}

func recoverDevice(d *Device, m *Manager) bool {
	err := d.Recover(m)
	if err == nil {
		log.Printf("FF: %s reopened, %d effects restored", d, m.Len())
		return true
	}
	var syncErr SyncError
	if errors.As(err, &syncErr) {
		log.Printf("FF: %s reopened with errors: %v", d, err)
		return true
	}
	log.Printf("FF: %s still gone: %v", d, err)
	return false
}
