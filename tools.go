//go:build tools

// Package tools fija las herramientas usadas por go generate (mockgen) como
// dependencias del modulo.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
