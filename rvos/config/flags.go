// Copyright 2026 The rvos Authors.
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

package config

import (
	"flag"
	"fmt"
	"reflect"
	"strconv"

	"github.com/BurntSushi/toml"
	"rvos.dev/rvos/pkg/kernel"
	"rvos.dev/rvos/pkg/mm"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file to read settings from. Flags given on the command line override it.")

	// Machine and kernel.
	flagSet.Uint64("memory-end", mm.DefaultMemoryEnd, "first physical address past RAM.")
	flagSet.Uint64("clock-freq", kernel.DefaultClockFreq, "machine timer frequency in Hz.")
	flagSet.Uint64("ticks-per-sec", kernel.DefaultTicksPerSec, "time slices per second.")
	flagSet.Uint64("user-stack-size", mm.DefaultUserStackSize, "user stack size in bytes.")
	flagSet.Uint64("kernel-stack-size", mm.DefaultKernelStackSize, "kernel stack size in bytes.")
	flagSet.String("apps-dir", "", "directory of additional ELF programs.")
	flagSet.String("init-proc", kernel.DefaultInitProc, "name of the first program.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.String("metrics-file", "", "file the kernel counters are written to when the machine stops.")

	// Console.
	flagSet.Bool("raw-terminal", true, "put a terminal stdin in raw mode while the machine runs.")
}

// NewFromFlags creates a new Config with values coming from the given flag
// set, overlaid on the file named by --config if any.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		if err := setFromFlag(flagSet, st.Field(i), obj.Field(i)); err != nil {
			return nil, err
		}
	}

	if conf.ConfigFile != "" {
		if _, err := toml.DecodeFile(conf.ConfigFile, conf); err != nil {
			return nil, fmt.Errorf("decoding config file %q: %w", conf.ConfigFile, err)
		}
		// Flags set explicitly win over the file.
		var err error
		flagSet.Visit(func(fl *flag.Flag) {
			for i := 0; i < st.NumField() && err == nil; i++ {
				if name, ok := st.Field(i).Tag.Lookup("flag"); ok && name == fl.Name {
					err = setFromFlag(flagSet, st.Field(i), obj.Field(i))
				}
			}
		})
		if err != nil {
			return nil, err
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setFromFlag sets field from the flag named by its tag.
func setFromFlag(flagSet *flag.FlagSet, f reflect.StructField, field reflect.Value) error {
	name, ok := f.Tag.Lookup("flag")
	if !ok {
		// No flag set for this field.
		return nil
	}
	fl := flagSet.Lookup(name)
	if fl == nil {
		panic(fmt.Sprintf("Flag %q not found", name))
	}
	getter, ok := fl.Value.(flag.Getter)
	if !ok {
		return fmt.Errorf("flag %q has no value getter", name)
	}
	field.Set(reflect.ValueOf(getter.Get()))
	return nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		val := getVal(obj.Field(i))

		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, val))
	}
	return rv
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
