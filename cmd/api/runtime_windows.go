//go:build windows

package main

import "tcrbert-backend/internal/core"

func initOnnxRuntime(dylib string) (func(), error) {
	return nil, core.ErrOnnxNotSupportedOnWindows
}
