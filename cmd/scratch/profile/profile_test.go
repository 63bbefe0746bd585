// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package profile

import (
	"bytes"
	"context"
	"testing"

	prof "github.com/matt-FFFFFF/scratch/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		name string
		hcl  bool
		file string
	}{
		{name: "yaml", file: "example.yaml"},
		{name: "hcl", hcl: true, file: "example.hcl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, write(&buf, tt.hcl))

			p, err := prof.Parse(context.Background(), tt.file, buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, prof.Example(), p)
		})
	}
}
