package badger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

func printf(tpl string, args ...interface{}) {
	if !logrus.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	newArgs := make([]interface{}, 0, len(args))
	for _, arg := range args {
		var newArg interface{}
		switch v := arg.(type) {
		case string:
			newArg = strings.TrimSpace(v)
		case []byte:
			newArg = strings.TrimSpace(string(v))
		default:
			newArg = arg
		}
		newArgs = append(newArgs, newArg)
	}
	logrus.WithField("driver", StorageName).Tracef(tpl, newArgs...)
}
