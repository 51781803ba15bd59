package log

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/astaxie/beego/logs"
)

var mlog *logs.BeeLogger

type LogConfig struct {
	Filename string `json:"filename"`
	Level    int    `json:"level,omitempty"`
	Rotate   bool   `json:"rotate,omitempty"`
	Daily    bool   `json:"daily,omitempty"`
	MaxDays  int64  `json:"maxdays,omitempty"`
	MaxLines int    `json:"maxlines,omitempty"`
	MaxSize  int    `json:"maxsize,omitempty"`
}

func init() {
	mlog = logs.NewLogger()
	mlog.EnableFuncCallDepth(true)
	mlog.SetLogFuncCallDepth(3)
	mlog.SetLogger(logs.AdapterConsole, "")
}

// InitLogger switches logging to a rotating file in dir at the given level.
func InitLogger(dir, strLevel string) (err error) {
	logLevel, ok := validLogLevel(strLevel)
	if !ok {
		return fmt.Errorf("mismatch the logLevel %s", strLevel)
	}
	config, err := json.Marshal(LogConfig{
		Filename: path.Join(dir, "debug.log"),
		Rotate:   true,
		Daily:    true,
		Level:    logLevel,
	})
	if err != nil {
		return err
	}
	mlog = logs.NewLogger()
	mlog.EnableFuncCallDepth(true)
	mlog.SetLogFuncCallDepth(3)
	return mlog.SetLogger(logs.AdapterFile, string(config))
}

func GetLogger() *logs.BeeLogger {
	return mlog
}

func Emergency(format string, v ...interface{}) {
	mlog.Emergency(format, v...)
}

func Alert(format string, v ...interface{}) {
	mlog.Alert(format, v...)
}

func Critical(format string, v ...interface{}) {
	mlog.Critical(format, v...)
}

func Error(format string, v ...interface{}) {
	mlog.Error(format, v...)
}

func Warn(format string, v ...interface{}) {
	mlog.Warn(format, v...)
}

func Notice(format string, v ...interface{}) {
	mlog.Notice(format, v...)
}

func Info(format string, v ...interface{}) {
	mlog.Info(format, v...)
}

func Debug(format string, v ...interface{}) {
	mlog.Debug(format, v...)
}

func Trace(format string, v ...interface{}) {
	mlog.Trace(format, v...)
}
