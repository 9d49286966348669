package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// errNoUser is returned by getUserID when no usable identity is present.
var errNoUser = errors.New("no user id in context")

// getUserID extracts the user_id stored by the JWT middleware and
// converts it to uint64.  JWT numeric claims decode as float64 and
// string subjects are common, so both are accepted.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case float64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		s := strings.TrimSpace(t)
		if s != "" {
			if id, err := strconv.ParseUint(s, 10, 64); err == nil && id > 0 {
				return id, nil
			}
		}
	}
	return 0, errNoUser
}

// pathID parses a positive uint64 path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
