package logger

import (
	"fmt"
	"sync"

	glog "github.com/Laisky/go-utils/v5/log"

	"github.com/xjp-ai/xjp-gateway/common/config"
)

var (
	Logger      glog.Logger
	initLogOnce sync.Once
)

// init initializes the logger automatically when the package is imported
func init() {
	initLogOnce.Do(func() {
		var err error
		level := glog.LevelInfo
		if config.DebugEnabled {
			level = glog.LevelDebug
		}

		Logger, err = glog.NewConsoleWithName("xjp-gateway", level)
		if err != nil {
			panic(fmt.Sprintf("failed to create logger: %+v", err))
		}
	})
}
