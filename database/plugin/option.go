// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to plugin option environment variables, as in
// RAFFLED_BLOB_BADGER_DATA_DIR
const EnvPrefix = "RAFFLED"

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

type PluginOption struct {
	DefaultValue any
	Dest         any
	Name         string
	Description  string
	Type         PluginOptionType
}

func (p *PluginOption) flagName(pluginType PluginType, pluginName string) string {
	return strings.Join(
		[]string{PluginTypeName(pluginType), pluginName, p.Name},
		"-",
	)
}

func (p *PluginOption) envVarName(pluginType PluginType, pluginName string) string {
	ret := strings.Join(
		[]string{EnvPrefix, PluginTypeName(pluginType), pluginName, p.Name},
		"_",
	)
	return strings.ToUpper(strings.ReplaceAll(ret, "-", "_"))
}

// AddToFlagSet registers the option as a command line flag
func (p *PluginOption) AddToFlagSet(
	fs *pflag.FlagSet,
	pluginType PluginType,
	pluginName string,
) error {
	name := p.flagName(pluginType, pluginName)
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s", name)
		}
		def, _ := p.DefaultValue.(string)
		fs.StringVar(dest, name, def, p.Description)
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s", name)
		}
		def, _ := p.DefaultValue.(bool)
		fs.BoolVar(dest, name, def, p.Description)
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s", name)
		}
		def, _ := p.DefaultValue.(int)
		fs.IntVar(dest, name, def, p.Description)
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s", name)
		}
		def, _ := p.DefaultValue.(uint64)
		fs.Uint64Var(dest, name, def, p.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, name)
	}
	return nil
}

// setValue performs a type-checked assignment into Dest. Strings are parsed for
// non-string options so values from the environment can be applied directly
func (p *PluginOption) setValue(value any) error {
	if p.Dest == nil {
		return fmt.Errorf("nil destination for option %s", p.Name)
	}
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination type for option %s: expected *string", p.Name)
		}
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected string", p.Name)
		}
		*dest = v
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination type for option %s: expected *bool", p.Name)
		}
		switch v := value.(type) {
		case bool:
			*dest = v
		case string:
			tmp, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for option %s: %w", p.Name, err)
			}
			*dest = tmp
		default:
			return fmt.Errorf("invalid type for option %s: expected bool", p.Name)
		}
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination type for option %s: expected *int", p.Name)
		}
		switch v := value.(type) {
		case int:
			*dest = v
		case string:
			tmp, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for option %s: %w", p.Name, err)
			}
			*dest = tmp
		default:
			return fmt.Errorf("invalid type for option %s: expected int", p.Name)
		}
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination type for option %s: expected *uint64", p.Name)
		}
		switch v := value.(type) {
		case uint64:
			*dest = v
		case int:
			if v < 0 {
				return fmt.Errorf("invalid value for option %s: negative int", p.Name)
			}
			*dest = uint64(v)
		case string:
			tmp, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for option %s: %w", p.Name, err)
			}
			*dest = tmp
		default:
			return fmt.Errorf("invalid type for option %s: expected uint64 or int", p.Name)
		}
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
	return nil
}

// PopulateCmdlineOptions adds flags for all options of all registered plugins
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	for _, entry := range pluginEntries {
		for i := range entry.Options {
			if err := entry.Options[i].AddToFlagSet(fs, entry.Type, entry.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessEnvVars applies plugin options from environment variables
func ProcessEnvVars() error {
	for _, entry := range pluginEntries {
		for i := range entry.Options {
			opt := &entry.Options[i]
			val, ok := os.LookupEnv(opt.envVarName(entry.Type, entry.Name))
			if !ok {
				continue
			}
			if err := opt.setValue(val); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin options from a config file. The map is keyed
// by plugin type name, then plugin name, then option name
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for _, entry := range pluginEntries {
		typeConfig, ok := pluginConfig[PluginTypeName(entry.Type)]
		if !ok {
			continue
		}
		optConfig, ok := typeConfig[entry.Name]
		if !ok {
			continue
		}
		for i := range entry.Options {
			opt := &entry.Options[i]
			val, ok := optConfig[opt.Name]
			if !ok {
				continue
			}
			// YAML decodes small numbers as int
			if opt.Type == PluginOptionTypeString {
				if _, isString := val.(string); !isString {
					val = fmt.Sprintf("%v", val)
				}
			}
			if err := opt.setValue(val); err != nil {
				return fmt.Errorf(
					"%s plugin %s: %w",
					PluginTypeName(entry.Type),
					entry.Name,
					err,
				)
			}
		}
	}
	return nil
}
