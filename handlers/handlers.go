// Package handlers lists the built-in handlers compiled into the host.
package handlers

import (
	"github.com/zidanhm/switchboard/handlers/echo"
	"github.com/zidanhm/switchboard/internal/host"
)

// Builtins returns the handlers every switchboard binary ships with.
func Builtins() []host.Registration {
	return []host.Registration{
		{Name: "echo", Factory: echo.New},
	}
}
