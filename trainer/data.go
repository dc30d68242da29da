package trainer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	CategoryDataFile = "expense_text_dataset.csv"
	GoalRiskDataFile = "user_goal_risk_dataset.csv"
	ClusterDataFile  = "user_spending_cluster_dataset.csv"
)

// table is a CSV file read by header name; extra columns are ignored.
type table struct {
	path    string
	columns map[string]int
	rows    [][]string
	lines   []int
}

func readTable(path string, required ...string) (*table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t := &table{path: path, columns: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.columns[name] = i
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		line, _ := reader.FieldPos(0)
		t.rows = append(t.rows, record)
		t.lines = append(t.lines, line)
	}
	if len(t.rows) == 0 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}
	return t, nil
}

func (t *table) text(row int, column string) (string, error) {
	i := t.columns[column]
	record := t.rows[row]
	if i >= len(record) {
		return "", fmt.Errorf("%s line %d: missing %s", t.path, t.lines[row], column)
	}
	return record[i], nil
}

func (t *table) float(row int, column string) (float64, error) {
	raw, err := t.text(row, column)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: %s: %w", t.path, t.lines[row], column, err)
	}
	return value, nil
}

func (t *table) floats(row int, columns []string) ([]float64, error) {
	values := make([]float64, len(columns))
	for i, column := range columns {
		v, err := t.float(row, column)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

type textDataset struct {
	texts  []string
	labels []string
}

func loadTextDataset(path string) (textDataset, error) {
	t, err := readTable(path, "text", "category")
	if err != nil {
		return textDataset{}, err
	}
	ds := textDataset{texts: make([]string, len(t.rows)), labels: make([]string, len(t.rows))}
	for i := range t.rows {
		if ds.texts[i], err = t.text(i, "text"); err != nil {
			return textDataset{}, err
		}
		label, err := t.text(i, "category")
		if err != nil {
			return textDataset{}, err
		}
		ds.labels[i] = strings.TrimSpace(label)
	}
	return ds, nil
}

type tabularDataset struct {
	features [][]float64
	labels   []string
}

func loadTabularDataset(path string, columns []string, labelColumn string) (tabularDataset, error) {
	required := append(append([]string{}, columns...), labelColumn)
	if labelColumn == "" {
		required = columns
	}
	t, err := readTable(path, required...)
	if err != nil {
		return tabularDataset{}, err
	}

	ds := tabularDataset{features: make([][]float64, len(t.rows))}
	for i := range t.rows {
		if ds.features[i], err = t.floats(i, columns); err != nil {
			return tabularDataset{}, err
		}
		if labelColumn == "" {
			continue
		}
		label, err := t.text(i, labelColumn)
		if err != nil {
			return tabularDataset{}, err
		}
		ds.labels = append(ds.labels, strings.TrimSpace(label))
	}
	return ds, nil
}
