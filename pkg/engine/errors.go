package engine

import (
	"errors"
)

var (
	ErrAnalysisInProgress = errors.New("another analysis is in progress")
	ErrClosed             = errors.New("the engine is closed")
	ErrNoAnalysis         = errors.New("no tracks were analyzed yet")
)
