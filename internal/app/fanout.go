package app

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/proximity_gesture/internal/gesture"
	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// Fanout forwards to every presenter. One failing presenter never keeps the
// others from being called.
type Fanout []gesture.Presenter

func (f Fanout) each(what string, call func(gesture.Presenter) error) error {
	var errs []error
	for _, p := range f {
		if err := call(p); err != nil {
			log.Warnf("present: %T %s: %v", p, what, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) ShowReading(s proximity.Sample, last *gesture.Result) error {
	return f.each("reading", func(p gesture.Presenter) error { return p.ShowReading(s, last) })
}

func (f Fanout) ShowResult(r gesture.Result) error {
	return f.each("result", func(p gesture.Presenter) error { return p.ShowResult(r) })
}

func (f Fanout) ShowFailure(err error) error {
	return f.each("failure", func(p gesture.Presenter) error { return p.ShowFailure(err) })
}
