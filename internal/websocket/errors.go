// internal/websocket/errors.go
package websocket

import "errors"

var ErrOriginNotAllowed = errors.New("websocket origin not allowed")
