package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestLoad_ExpandsEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	t.Setenv("SAMPLE_NAME", "desk")
	if err := os.WriteFile(path, []byte("name: ${SAMPLE_NAME}\nport: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "desk" || s.Port != 7 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("port: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := Load(path, &sample{})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	s := sample{Name: "default", Port: 80}
	if err := LoadOrDefault(missing, &s); err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if s.Name != "default" || s.Port != 80 {
		t.Errorf("defaults changed: %+v", s)
	}

	if err := LoadOrDefault(missing, &sample{}); err == nil {
		t.Error("invalid defaults should fail validation")
	}
}

func TestLoadOrDefault_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("port: 9\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := sample{Name: "default", Port: 80}
	if err := LoadOrDefault(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "default" || s.Port != 9 {
		t.Errorf("got %+v", s)
	}
}
