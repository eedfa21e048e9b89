package utils

import (
	"errors"
	"fmt"

	"github.com/code-100-precent/LingChat/pkg/logger"
	"go.uber.org/zap"
)

// SafeCall runs f and converts a panic into an error. failHandle, when set,
// observes the recovered error; otherwise it is logged.
func SafeCall(f func() error, failHandle func(error)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = fmt.Errorf("unknown error type: %v", v)
			}
			if failHandle != nil {
				failHandle(err)
			} else {
				logger.Error("panic", zap.Error(err))
			}
		}
	}()
	return f()
}
