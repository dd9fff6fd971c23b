package process

import (
	"github.com/sirupsen/logrus"
)

// Log receives debug output about candidates skipped during enumeration,
// partial region copies and unreadable pointer chain steps. It only
// prints warnings and above unless its level is raised.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		PadLevelText:    true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	l.SetLevel(logrus.WarnLevel)
	return l
}
