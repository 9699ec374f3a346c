package logger

import (
	"fmt"
	"io"
	"log"
)

func Null() *log.Logger {
	return log.New(io.Discard, "", log.LstdFlags)
}

func Default() *log.Logger {
	return log.Default()
}

// ForCommand returns a logger writing to w, prefixed like "[mlreg model show] ".
func ForCommand(w io.Writer, fullname string) *log.Logger {
	return log.New(w, fmt.Sprintf("[%s] ", fullname), log.LstdFlags)
}
