package liststore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/roster/internal/employee"
)

// SeedFile models a YAML file of starting items:
//
//	items:
//	  - name: Ann Lee
//	    hire_date: 2020-01-01
//	    job_description: Engineer
type SeedFile struct {
	Items []SeedItem `yaml:"items"`
}

// SeedItem is one starting row.
type SeedItem struct {
	Name           string `yaml:"name"`
	HireDate       string `yaml:"hire_date"`
	JobDescription string `yaml:"job_description"`
}

// LoadSeed reads path into write payloads.
func LoadSeed(path string) ([]employee.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("liststore: read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) ([]employee.Payload, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("liststore: parse seed: %w", err)
	}
	out := make([]employee.Payload, 0, len(file.Items))
	for _, it := range file.Items {
		out = append(out, employee.Payload{
			Title:          it.Name,
			Name:           it.Name,
			HireDate:       it.HireDate,
			JobDescription: it.JobDescription,
		})
	}
	return out, nil
}
