// ===========================================================================
//
//                            PUBLIC DOMAIN NOTICE
//            National Center for Biotechnology Information (NCBI)
//
//  This software/database is a "United States Government Work" under the
//  terms of the United States Copyright Act. It was written as part of
//  the author's official duties as a United States Government employee and
//  thus cannot be copyrighted. This software/database is freely available
//  to the public for use. The National Library of Medicine and the U.S.
//  Government do not place any restriction on its use or reproduction.
//  We would, however, appreciate having the NCBI and the author cited in
//  any work or product based on this material.
//
//  Although all reasonable efforts have been taken to ensure the accuracy
//  and reliability of the software and data, the NLM and the U.S.
//  Government do not and cannot warrant the performance or results that
//  may be obtained by using this software or data. The NLM and the U.S.
//  Government disclaim all warranties, express or implied, including
//  warranties of performance, merchantability or fitness for any particular
//  purpose.
//
// ===========================================================================
//
// File Name:  config.go
//
// ==========================================================================

package eutils

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/komkom/toml"
)

// default values for a search with no configuration file and no flags
const (
	DefaultBase       = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
	DefaultDatabase   = "nucleotide"
	DefaultIdentifier = "30271926"
	DefaultPattern    = "AAAATAGCCCC"
	DefaultOutput     = "matches.csv"
	DefaultTimeout    = 60
)

// Config holds every setting of one search. It is filled from defaults, then a
// YAML or TOML file, then command-line flags, and passed explicitly to Search.
type Config struct {
	Base       string `json:"base" yaml:"base" validate:"required,url"`
	Database   string `json:"db" yaml:"db" validate:"required,alphanum"`
	Identifier string `json:"id" yaml:"id" validate:"required_without=Input"`
	Pattern    string `json:"pattern" yaml:"pattern" validate:"required"`
	Input      string `json:"input" yaml:"input"`
	Output     string `json:"output" yaml:"output" validate:"required"`
	Cache      bool   `json:"cache" yaml:"cache"`
	CacheDir   string `json:"dir" yaml:"dir"`
	Fold       string `json:"fold" yaml:"fold" validate:"omitempty,oneof=upper lower"`
	ChunkSize  int    `json:"chunk" yaml:"chunk" validate:"min=4096,max=1048576"`
	Timeout    int    `json:"timeout" yaml:"timeout" validate:"min=0"`
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {

	return &Config{
		Base:       DefaultBase,
		Database:   DefaultDatabase,
		Identifier: DefaultIdentifier,
		Pattern:    DefaultPattern,
		Output:     DefaultOutput,
		CacheDir:   ".",
		ChunkSize:  DefaultChunkSize,
		Timeout:    DefaultTimeout,
	}
}

// LoadConfig overlays the settings in a .yaml, .yml, or .toml file onto cfg.
// Keys that are absent keep their current values.
func LoadConfig(path string, cfg *Config) error {

	data, err := os.ReadFile(path)
	if err != nil {
		return kindWrap(CONFIGERROR, err, "unable to read configuration file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return kindWrap(CONFIGERROR, err, "unable to parse YAML in %s", path)
		}
	case ".toml":
		// the TOML reader emits the equivalent JSON document
		rdr := toml.New(bytes.NewReader(data))
		dec := json.NewDecoder(rdr)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return kindWrap(CONFIGERROR, err, "unable to parse TOML in %s", path)
		}
	default:
		return kindError(CONFIGERROR, "unrecognized configuration file type '%s'", filepath.Ext(path))
	}

	return nil
}

var validate = validator.New()

// Validate checks the settings before anything is opened
func (c *Config) Validate() error {

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if vr, ok := err.(validator.ValidationErrors); ok {
		verrs = vr
	}
	if len(verrs) == 0 {
		return kindWrap(CONFIGERROR, err, "invalid configuration")
	}

	var msgs []string
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fe.Field()+" fails '"+fe.Tag()+"="+fe.Param()+"'")
		} else {
			msgs = append(msgs, fe.Field()+" fails '"+fe.Tag()+"'")
		}
	}

	return kindError(CONFIGERROR, "invalid configuration: %s", strings.Join(msgs, ", "))
}

// URL returns the efetch request for the configured record
func (c *Config) URL() string {

	return EfetchURL(c.Base, c.Database, c.Identifier)
}

// CacheID names the record in the cache file. A local input is named after its
// file, not after the default remote identifier.
func (c *Config) CacheID() string {

	switch c.Input {
	case "":
		return c.Identifier
	case "-":
		return "stdin"
	}

	base := filepath.Base(c.Input)
	for _, ext := range []string{".gz", ".xml"} {
		if strings.HasSuffix(strings.ToLower(base), ext) && len(base) > len(ext) {
			base = base[:len(base)-len(ext)]
		}
	}

	return base
}

// SummaryOutput is where the tally goes. When the CSV rows stream to stdout the
// tally moves to stderr, keeping the data stream pure CSV.
func (c *Config) SummaryOutput() io.Writer {

	if c.Output == "" || c.Output == "-" {
		return os.Stderr
	}
	return os.Stdout
}

// ExtractFields returns the element names and case folding for the extractor
func (c *Config) ExtractFields() ExtractFields {

	flds := DefaultExtractFields()
	flds.Fold = c.Fold

	return flds
}

func secondsToDuration(secs int) time.Duration {

	return time.Duration(secs) * time.Second
}
