package main

import (
	"io"

	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/sirupsen/logrus"
)

// newLogger builds the CLI logger. It satisfies calculation.Logger, so the
// engine and resolver log through it directly.
func newLogger(w io.Writer, level string, debug bool) (*logrus.Entry, error) {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if debug {
		level = "debug"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)
	return l.WithField("app", "kepay"), nil
}

// logChanges writes one audit line per committed catalog write
func logChanges(log *logrus.Entry) func(catalog.ChangeEvent) {
	return func(ev catalog.ChangeEvent) {
		log.WithFields(logrus.Fields{
			"event":    ev.ID,
			"kind":     ev.Kind,
			"group":    ev.Group.String(),
			"formulas": ev.FormulaIDs,
		}).Info("catalog changed")
	}
}
