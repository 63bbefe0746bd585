// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/matt-FFFFFF/scratch/internal/filelock"
	"github.com/matt-FFFFFF/scratch/internal/workspace"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
)

const hclExt = ".hcl"

var (
	// ErrReadProfile is returned when the profile file cannot be read.
	ErrReadProfile = errors.New("failed to read profile")
	// ErrYamlUnmarshal is returned when a YAML profile cannot be decoded.
	ErrYamlUnmarshal = errors.New("failed to unmarshal YAML profile")
	// ErrHclDecode is returned when an HCL profile cannot be parsed or decoded.
	ErrHclDecode = errors.New("failed to decode HCL profile")
	// ErrInvalidProfile is returned by Validate.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrNoCommand is reported when the profile has no command.
	ErrNoCommand = errors.New("command must not be empty")
	// ErrLockTimeout is reported when lock_timeout is not a positive duration.
	ErrLockTimeout = errors.New("lock_timeout must be a positive duration such as 30s")
)

// FsFactory returns the filesystem profiles are read from.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Profile describes one scratch run.
// Relative paths are resolved against the working directory when the run starts.
type Profile struct {
	Root        string            `yaml:"root,omitempty" hcl:"root,optional"`
	Link        bool              `yaml:"link,omitempty" hcl:"link,optional"`
	CopyIn      bool              `yaml:"copy_in,omitempty" hcl:"copy_in,optional"`
	CopyOut     bool              `yaml:"copy_out,omitempty" hcl:"copy_out,optional"`
	Command     []string          `yaml:"command" hcl:"command,optional"`
	Env         map[string]string `yaml:"env,omitempty" hcl:"env,optional"`
	Lock        string            `yaml:"lock,omitempty" hcl:"lock,optional"`
	LockTimeout string            `yaml:"lock_timeout,omitempty" hcl:"lock_timeout,optional"`
}

// Load reads and validates the profile in name.
func Load(ctx context.Context, name string) (*Profile, error) {
	data, err := afero.ReadFile(FsFactory(), name)
	if err != nil {
		return nil, errors.Join(ErrReadProfile, err)
	}

	return Parse(ctx, name, data)
}

// Parse decodes data with Decode, then validates it.
func Parse(ctx context.Context, name string, data []byte) (*Profile, error) {
	p, err := Decode(name, data)
	if err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctxlog.Debug(ctx, "profile", "detail", "loaded profile", "name", name, "root", p.Root, "command", p.Command)

	return p, nil
}

// Decode decodes data as HCL when name ends in ".hcl" and as YAML otherwise.
// The result is not validated, so callers may fill in missing fields first.
func Decode(name string, data []byte) (*Profile, error) {
	if strings.EqualFold(filepath.Ext(name), hclExt) {
		return ParseHCL(name, data)
	}

	return ParseYAML(data)
}

// ParseYAML decodes a YAML profile. Unknown keys are rejected.
func ParseYAML(data []byte) (*Profile, error) {
	p := new(Profile)
	if err := yaml.UnmarshalWithOptions(data, p, yaml.Strict()); err != nil {
		return nil, errors.Join(ErrYamlUnmarshal, err)
	}

	return p, nil
}

// ParseHCL decodes an HCL profile. The filename is used in diagnostics only.
func ParseHCL(filename string, data []byte) (*Profile, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.Join(ErrHclDecode, diags)
	}

	p := new(Profile)
	if diags := gohcl.DecodeBody(file.Body, evalContext(), p); diags.HasErrors() {
		return nil, errors.Join(ErrHclDecode, diags)
	}

	return p, nil
}

func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !hclsyntax.ValidIdentifier(k) {
			continue
		}

		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

// Validate reports every problem with the profile at once.
func (p *Profile) Validate() error {
	var result *multierror.Error

	if len(p.Command) == 0 || strings.TrimSpace(p.Command[0]) == "" {
		result = multierror.Append(result, ErrNoCommand)
	}

	if _, err := p.LockTimeoutDuration(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.Join(ErrInvalidProfile, err)
	}

	return nil
}

// LockTimeoutDuration parses LockTimeout, defaulting to filelock.DefaultTimeout.
func (p *Profile) LockTimeoutDuration() (time.Duration, error) {
	if p.LockTimeout == "" {
		return filelock.DefaultTimeout, nil
	}

	d, err := time.ParseDuration(p.LockTimeout)
	if err != nil {
		return 0, errors.Join(ErrLockTimeout, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%w: got %s", ErrLockTimeout, d)
	}

	return d, nil
}

// WorkspaceOptions returns the workspace options selected by the profile.
func (p *Profile) WorkspaceOptions() []workspace.Option {
	var opts []workspace.Option

	if p.Link {
		opts = append(opts, workspace.WithSymbolicLink())
	}

	if p.CopyIn {
		opts = append(opts, workspace.WithCopyIn())
	}

	if p.CopyOut {
		opts = append(opts, workspace.WithCopyOut())
	}

	return opts
}

// Example returns a profile suitable as a starting point.
func Example() *Profile {
	return &Profile{
		Root:        "/tmp",
		CopyIn:      true,
		CopyOut:     true,
		Command:     []string{"make", "build"},
		Env:         map[string]string{"CGO_ENABLED": "0"},
		Lock:        "build",
		LockTimeout: "30s",
	}
}

// WriteYAML writes the profile as YAML.
func (p *Profile) WriteYAML(w io.Writer) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	_, err = w.Write(b)

	return err
}

// WriteHCL writes the profile as HCL.
func (p *Profile) WriteHCL(w io.Writer) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	if p.Root != "" {
		body.SetAttributeValue("root", cty.StringVal(p.Root))
	}

	body.SetAttributeValue("link", cty.BoolVal(p.Link))
	body.SetAttributeValue("copy_in", cty.BoolVal(p.CopyIn))
	body.SetAttributeValue("copy_out", cty.BoolVal(p.CopyOut))

	cmd := make([]cty.Value, 0, len(p.Command))
	for _, c := range p.Command {
		cmd = append(cmd, cty.StringVal(c))
	}

	if len(cmd) == 0 {
		body.SetAttributeValue("command", cty.ListValEmpty(cty.String))
	} else {
		body.SetAttributeValue("command", cty.ListVal(cmd))
	}

	if len(p.Env) > 0 {
		env := make(map[string]cty.Value, len(p.Env))
		for k, v := range p.Env {
			env[k] = cty.StringVal(v)
		}

		body.SetAttributeValue("env", cty.MapVal(env))
	}

	if p.Lock != "" {
		body.SetAttributeValue("lock", cty.StringVal(p.Lock))
	}

	if p.LockTimeout != "" {
		body.SetAttributeValue("lock_timeout", cty.StringVal(p.LockTimeout))
	}

	_, err := f.WriteTo(w)

	return err
}
