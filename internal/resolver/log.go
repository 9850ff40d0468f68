package resolver

import (
	logx "github.com/ije/gox/log"
)

var log = &logx.Logger{}

// SetLogger sets the logger of the resolver package.
func SetLogger(l *logx.Logger) {
	log = l
}
