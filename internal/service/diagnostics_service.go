package service

import (
	"winsentry/internal/dto"
	"winsentry/internal/logging"
)

const (
	defaultDiagnosticLines = 20
	maxDiagnosticLines     = 500
)

type DiagnosticsService interface {
	Tail(lines int) (*dto.DiagnosticsResponse, error)
}

type diagnosticsService struct {
	logFile string
}

func NewDiagnosticsService(logFile string) DiagnosticsService {
	return &diagnosticsService{logFile: logFile}
}

// Tail returns the last lines of the program's own log file.
func (s *diagnosticsService) Tail(lines int) (*dto.DiagnosticsResponse, error) {
	if lines <= 0 {
		lines = defaultDiagnosticLines
	}
	if lines > maxDiagnosticLines {
		lines = maxDiagnosticLines
	}
	out, err := logging.TailFile(s.logFile, lines)
	if err != nil {
		return nil, err
	}
	return &dto.DiagnosticsResponse{File: s.logFile, Lines: out}, nil
}
