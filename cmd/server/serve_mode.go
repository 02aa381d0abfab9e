package main

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidServeMode = errors.New("invalid serve mode")

// ServeMode selects which parts of the process run. Several processes may
// share one document store, for example one api and one worker.
type ServeMode string

const (
	ServeModeMonolith ServeMode = "monolith"
	ServeModeAPI      ServeMode = "api"
	ServeModeWorker   ServeMode = "worker"
)

func ParseServeMode(rawInput string) (ServeMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawInput))
	if normalized == "" {
		return ServeModeMonolith, nil
	}

	mode := ServeMode(normalized)
	switch mode {
	case ServeModeMonolith, ServeModeAPI, ServeModeWorker:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidServeMode, rawInput)
	}
}

func (mode ServeMode) ServesAPI() bool {
	return mode == ServeModeMonolith || mode == ServeModeAPI
}

func (mode ServeMode) RunsWorkers() bool {
	return mode == ServeModeMonolith || mode == ServeModeWorker
}
