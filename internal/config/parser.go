package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/pagemark/internal/annotation"
)

// Parse reads configuration from an io.Reader. Unknown keys and sections are
// ignored so newer files still load.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	var section string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		// Key = Value or Key: Value
		var parts []string
		if strings.Contains(line, "=") {
			parts = strings.SplitN(line, "=", 2)
		} else if strings.Contains(line, ":") {
			parts = strings.SplitN(line, ":", 2)
		} else {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = value[1 : len(value)-1]
		}

		var err error
		switch section {
		case "":
			err = setRootField(cfg, key, value)
		case "capture":
			err = setCaptureField(&cfg.Capture, key, value)
		case "export":
			err = setExportField(&cfg.Export, key, value)
		case "notify":
			err = setNotifyField(&cfg.Notify, key, value)
		}
		if err != nil {
			name := section
			if name == "" {
				name = "root"
			}
			return nil, fmt.Errorf("line %d in [%s]: %w", lineNo, name, err)
		}
	}

	return cfg, scanner.Err()
}

func positive(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for key %s: %w", key, err)
	}
	if !(f > 0) {
		return 0, fmt.Errorf("key %s must be positive, got %s", key, value)
	}
	return f, nil
}

func nonNegativeInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for key %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("key %s must not be negative, got %d", key, n)
	}
	return n, nil
}

func setRootField(cfg *Config, key, value string) (err error) {
	switch key {
	case "output_dir":
		cfg.OutputDir = value
	case "scale":
		cfg.Scale, err = positive(key, value)
	case "suffix":
		cfg.Suffix = value
	}
	return err
}

func setCaptureField(c *Capture, key, value string) (err error) {
	switch key {
	case "color":
		c.Color, err = annotation.ParseColor(value)
	case "stroke_width":
		c.StrokeWidth, err = positive(key, value)
	case "text_size":
		c.TextSize, err = positive(key, value)
	case "dedup_px":
		c.DedupPx, err = strconv.ParseFloat(value, 64)
		if err == nil && c.DedupPx < 0 {
			err = fmt.Errorf("key %s must not be negative, got %s", key, value)
		}
	case "erase_radius":
		c.EraseRadius, err = nonNegativeInt(key, value)
	case "history_limit":
		c.HistoryLimit, err = nonNegativeInt(key, value)
	}
	return err
}

func setExportField(e *Export, key, value string) (err error) {
	switch key {
	case "compress":
		e.Compress, err = parseBool(key, value)
	case "verify":
		e.Verify, err = parseBool(key, value)
	case "busy_policy":
		switch value {
		case "restart", "queue":
			e.BusyPolicy = value
		default:
			err = fmt.Errorf("busy_policy must be restart or queue, got %q", value)
		}
	}
	return err
}

func setNotifyField(n *Notify, key, value string) (err error) {
	switch key {
	case "export":
		n.Export, err = parseBool(key, value)
	case "failure":
		n.Failure, err = parseBool(key, value)
	case "copy":
		n.Copy, err = parseBool(key, value)
	}
	return err
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	return b, nil
}
