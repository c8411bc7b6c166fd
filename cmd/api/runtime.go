//go:build !windows

package main

import (
	"fmt"
	"log"

	ort "github.com/yalue/onnxruntime_go"
)

func initOnnxRuntime(dylib string) (func(), error) {
	if dylib == "" {
		return nil, fmt.Errorf("ONNX_RUNTIME_DYLIB must be set for onnx models")
	}

	ort.SetSharedLibraryPath(dylib)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("could not init ONNX Runtime: %w", err)
	}

	return func() {
		if err := ort.DestroyEnvironment(); err != nil {
			log.Printf("error destroying ONNX Runtime environment: %v", err)
		}
	}, nil
}
