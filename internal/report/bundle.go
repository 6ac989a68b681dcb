package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/pulse.report/internal/rppg/session"
	"github.com/banshee-data/pulse.report/internal/security"
)

// WriteBundle writes name.json, name.png and name.html into dir, creating
// it if needed. name is sanitised, so a stored session ID can be passed
// directly. It returns the written paths.
func WriteBundle(dir, name string, exp session.Export) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	var written []string
	jsonPath, err := security.ResolveWithin(dir, name, ".json")
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	if err := os.WriteFile(jsonPath, append(b, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	written = append(written, jsonPath)

	if len(exp.Samples) == 0 {
		return written, nil
	}

	pngPath, err := security.ResolveWithin(dir, name, ".png")
	if err != nil {
		return written, err
	}
	if err := PlotSession(exp, pngPath); err != nil {
		return written, err
	}
	written = append(written, pngPath)

	htmlPath, err := security.ResolveWithin(dir, name, ".html")
	if err != nil {
		return written, err
	}
	f, err := os.Create(htmlPath)
	if err != nil {
		return written, fmt.Errorf("create chart: %w", err)
	}
	if err := WriteSessionChart(f, exp); err != nil {
		f.Close()
		return written, err
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close chart: %w", err)
	}
	return append(written, htmlPath), nil
}
