package echoutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// LogHandlerFunc is a middleware which logs each request and its response.
func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		meth := c.Request().Method
		path := c.Request().URL
		begin := time.Now()
		c.Logger().Infof("< request %s %s", meth, path)

		err := next(c)

		c.Logger().Infof(
			"> response %d for %s %s in %v / error = %v",
			c.Response().Status, meth, path, time.Since(begin), err,
		)
		return err
	}
}

// ParseLevel converts level names (debug, info, warn, error, off) into gommon's log level.
//
// An empty name means warn.
func ParseLevel(name string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DEBUG, nil
	case "info":
		return log.INFO, nil
	case "", "warn":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	}
	return log.WARN, fmt.Errorf("unknown loglevel: %s", name)
}

// SetLevel sets the level of e's logger.
//
// Unknown level names fall back to warn, with a warning.
func SetLevel(e *echo.Echo, name string) {
	lvl, err := ParseLevel(name)
	e.Logger.SetLevel(lvl)
	if err != nil {
		e.Logger.Warnf("%s. fall-backed to warn", err)
	}
}
