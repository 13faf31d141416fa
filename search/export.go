package search

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"github.com/zeu5/hospitalbot-rl/util"
	"gopkg.in/yaml.v3"
)

const trialsSheet = "Trials"

// ExportXLSX writes one row per trial: number, state, value, timestamps,
// then one column per parameter and per user attribute
func ExportXLSX(trials []FrozenTrial, filePath string) error {
	paramNames := make([]string, 0)
	attrNames := make([]string, 0)
	seenParams := make(map[string]bool)
	seenAttrs := make(map[string]bool)
	for _, t := range trials {
		for name := range t.Params {
			if !seenParams[name] {
				seenParams[name] = true
				paramNames = append(paramNames, name)
			}
		}
		for name := range t.UserAttrs {
			if !seenAttrs[name] {
				seenAttrs[name] = true
				attrNames = append(attrNames, name)
			}
		}
	}
	sort.Strings(paramNames)
	sort.Strings(attrNames)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", trialsSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	header := []interface{}{"number", "state", "value", "datetime_start", "datetime_complete"}
	for _, name := range paramNames {
		header = append(header, "params_"+name)
	}
	for _, name := range attrNames {
		header = append(header, "user_attrs_"+name)
	}
	if err := f.SetSheetRow(trialsSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for i, t := range trials {
		row := []interface{}{t.Number, string(t.State), t.Value, formatTime(t.Start), formatTime(t.Complete)}
		if t.State != TrialComplete {
			row[2] = ""
		}
		for _, name := range paramNames {
			if v, ok := t.Params[name]; ok {
				row = append(row, v)
			} else {
				row = append(row, "")
			}
		}
		for _, name := range attrNames {
			row = append(row, t.UserAttrs[name])
		}
		if err := f.SetSheetRow(trialsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return errors.Wrapf(err, "writing trial %d", t.Number)
		}
	}

	if err := util.EnsureParent(filePath); err != nil {
		return err
	}
	return errors.Wrap(f.SaveAs(filePath), "saving workbook")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// WriteParamsYAML writes a parameter set as a YAML mapping
func WriteParamsYAML(params map[string]float64, filePath string) error {
	bs, err := yaml.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "encoding params")
	}
	if err := util.EnsureParent(filePath); err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(filePath, bs, 0644), "writing params")
}

// ReadParamsYAML reads a file written by WriteParamsYAML
func ReadParamsYAML(filePath string) (map[string]float64, error) {
	bs, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "reading params")
	}
	params := make(map[string]float64)
	if err := yaml.Unmarshal(bs, &params); err != nil {
		return nil, errors.Wrap(err, "decoding params")
	}
	return params, nil
}
