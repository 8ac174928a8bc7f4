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

package cmd

import (
	"context"
	"flag"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"rvos.dev/rvos/rvos/config"
)

// Apps implements subcommands.Command for the "apps" command.
type Apps struct{}

// Name implements subcommands.Command.Name.
func (*Apps) Name() string {
	return "apps"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Apps) Synopsis() string {
	return "list the programs the kernel can run"
}

// Usage implements subcommands.Command.Usage.
func (*Apps) Usage() string {
	return `apps - list the bundled programs and those in --apps-dir.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Apps) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Apps) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	reg, err := registry(ctx, conf)
	if err != nil {
		return Errorf("%v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	printf(w, "NAME\tENTRY\tSEGMENTS\tSIZE\n")
	for _, name := range reg.Names() {
		img, err := reg.Load(name)
		if err != nil {
			return Errorf("%v", err)
		}
		var size uint64
		for _, s := range img.Segments {
			size += s.MemSize
		}
		printf(w, "%s\t%#x\t%d\t%d\n", name, img.Entry, len(img.Segments), size)
	}
	if err := w.Flush(); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}
