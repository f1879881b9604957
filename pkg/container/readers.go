package container

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/dennishilgert/actionpack/pkg/logger"
)

type dockerOutputExtractor func(string) dockerOutput

type dockerOutput interface {
	Captured() string
}

type dockerOutStatus struct {
	Status   string `json:"status"`
	Progress string `json:"progress"`
}

func (d *dockerOutStatus) Captured() string {
	if d.Progress != "" {
		return d.Status + " " + d.Progress
	}
	return d.Status
}

func dockerReaderStatus() dockerOutputExtractor {
	return func(raw string) dockerOutput {
		out := &dockerOutStatus{}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return nil
		}
		return out
	}
}

type dockerErrorLine struct {
	Error       string
	ErrorDetail dockerErrorDetail
}

type dockerErrorDetail struct {
	Message string
}

// processDockerOutput drains a Docker json message stream and returns the error of its last line, if any.
func processDockerOutput(log logger.Logger, reader io.ReadCloser, lineReader dockerOutputExtractor) error {
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	lastLine := ""
	for scanner.Scan() {
		lastLine = scanner.Text()
		printable := lineReader(lastLine)
		if printable == nil {
			log.Warn("Docker output is not a status line, skipping")
			continue
		}
		log.Debugf("Docker response: %s", strings.TrimSpace(printable.Captured()))
	}

	errLine := &dockerErrorLine{}
	json.Unmarshal([]byte(lastLine), errLine)
	if errLine.Error != "" {
		log.Errorf("Docker finished with an error: %s", errLine.Error)
		return errors.New(errLine.Error)
	}
	if scannerErr := scanner.Err(); scannerErr != nil {
		log.Errorf("Docker response scanner finished with an error: %v", scannerErr)
		return scannerErr
	}

	return nil
}
