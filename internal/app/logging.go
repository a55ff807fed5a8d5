package app

import (
	log "github.com/sirupsen/logrus"
)

// SetLogLevel applies LOG_LEVEL. Unknown levels keep info.
func SetLogLevel(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown LOG_LEVEL %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
