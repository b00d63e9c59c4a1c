package vtrack

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads the class names the detector Model was trained on from
// the given text file.  It should contain one label per line.
func LoadLabels(file string) ([]string, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	// create a scanner to read the file.
	scanner := bufio.NewScanner(f)

	var labels []string

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}

// FormatLabel returns the annotation text for a tracked object, "#id" while
// its speed is unknown and "#id N unit" with the speed truncated to whole
// units otherwise
func FormatLabel(trackID int, speed float64, hasSpeed bool, unit string) string {

	if !hasSpeed {
		return fmt.Sprintf("#%d", trackID)
	}

	return fmt.Sprintf("#%d %d %s", trackID, int(speed), unit)
}
