// Package logadapter bridges this repo's logrus.Logger (used throughout
// pkg/ for component-level logging) onto the go-logr/logr.Logger
// interface required by pkg/audit and pkg/cache/redis, so both logging
// conventions present in the dependency set are driven from one
// underlying logrus instance instead of configuring two loggers.
package logadapter

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/sirupsen/logrus"
)

// FromLogrus wraps l as a logr.Logger. V-levels above 0 map to Debug;
// level 0 maps to Info. Error always logs at Error.
func FromLogrus(l *logrus.Logger) logr.Logger {
	entry := logrus.NewEntry(l)
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			entry.Info(prefix + " " + args)
			return
		}
		entry.Info(args)
	}, funcr.Options{
		LogCaller: funcr.None,
	})
}
