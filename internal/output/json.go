package output

import (
	"encoding/json"

	"github.com/storyloom/storyloom/internal/core"
)

// JSONFormatter renders run results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatRun renders a run result as JSON.
func (f *JSONFormatter) FormatRun(run *core.RunResult) (string, error) {
	if run == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(run, "", "  ")
	} else {
		data, err = json.Marshal(run)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
