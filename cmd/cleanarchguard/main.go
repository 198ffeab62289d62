// Command cleanarchguard checks that module packages only import inward:
// presentation and infrastructure may use services and domain, services may
// use domain, domain uses neither.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"gopkg.in/yaml.v3"
)

type config struct {
	Root              string   `yaml:"root"`
	IgnoreTests       bool     `yaml:"ignore_tests"`
	IgnorePackages    []string `yaml:"ignore_packages"`
	SharedModules     []string `yaml:"shared_modules"`
	AllowedViolations []string `yaml:"allow_violations"`
	Layers            struct {
		Domain         []string `yaml:"domain"`
		Application    []string `yaml:"application"`
		Interfaces     []string `yaml:"interfaces"`
		Infrastructure []string `yaml:"infrastructure"`
	} `yaml:"layers"`
}

var (
	defaultDomain         = []string{"domain"}
	defaultApplication    = []string{"services"}
	defaultInterfaces     = []string{"presentation", "controllers"}
	defaultInfrastructure = []string{"infrastructure", "persistence"}
)

func main() {
	configPath := flag.String("config", ".gocleanarch.yml", "config file")
	debug := flag.Bool("debug", false, "print go-cleanarch debug output")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("cleanarchguard: %v", err)
	}
	if *debug {
		cleanarch.Log.SetOutput(os.Stderr)
	}
	violations, err := check(cfg)
	if err != nil {
		log.Fatalf("cleanarchguard: %v", err)
	}
	for _, v := range violations {
		log.Println(v)
	}
	if len(violations) > 0 {
		log.Printf("cleanarchguard: %d violation(s)", len(violations))
		os.Exit(1)
	}
	log.Println("cleanarchguard: ok")
}

// loadConfig reads path. A missing file yields the defaults rooted at
// "modules".
func loadConfig(path string) (*config, error) {
	cfg := &config{IgnoreTests: true}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, errors.Wrap(err, "read config")
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	}
	if strings.TrimSpace(cfg.Root) == "" {
		cfg.Root = "modules"
	}
	return cfg, nil
}

func layerAliases(cfg *config) map[string]cleanarch.Layer {
	aliases := map[string]cleanarch.Layer{}
	add := func(custom, defaults []string, layer cleanarch.Layer) {
		names := defaults
		if len(custom) > 0 {
			names = custom
		}
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				aliases[n] = layer
			}
		}
	}
	add(cfg.Layers.Domain, defaultDomain, cleanarch.LayerDomain)
	add(cfg.Layers.Application, defaultApplication, cleanarch.LayerApplication)
	add(cfg.Layers.Interfaces, defaultInterfaces, cleanarch.LayerInterfaces)
	add(cfg.Layers.Infrastructure, defaultInfrastructure, cleanarch.LayerInfrastructure)
	return aliases
}

func check(cfg *config) ([]string, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve root")
	}
	ok, errs, err := cleanarch.NewValidator(layerAliases(cfg)).Validate(root, cfg.IgnoreTests, cfg.IgnorePackages)
	if err != nil {
		return nil, errors.Wrap(err, "validate")
	}
	if ok {
		return nil, nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return filterViolations(msgs, cfg), nil
}

var crossModulePattern = regexp.MustCompile(`between ([\w-]+) and ([\w-]+) modules`)

// filterViolations drops cross-module findings that involve a shared module
// and any message containing an allowed pattern.
func filterViolations(msgs []string, cfg *config) []string {
	shared := map[string]bool{}
	for _, m := range cfg.SharedModules {
		if m = strings.TrimSpace(m); m != "" {
			shared[m] = true
		}
	}
	var out []string
	for _, msg := range msgs {
		if m := crossModulePattern.FindStringSubmatch(msg); m != nil && (shared[m[1]] || shared[m[2]]) {
			continue
		}
		if allowed(msg, cfg.AllowedViolations) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func allowed(msg string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
