package config

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	type want struct {
		runAddress       string
		apiAddress       string
		stateDir         string
		paymentPublicKey string
	}

	tests := []struct {
		name  string
		env   map[string]string
		flags []string
		want  want
	}{
		{
			name:  "defaults",
			env:   map[string]string{},
			flags: []string{},
			want: want{
				runAddress: "localhost:3000",
				apiAddress: "http://localhost:8080",
				stateDir:   ".storefront",
			},
		},
		{
			name: "env only",
			env: map[string]string{
				"RUN_ADDRESS":          "localhost:9999",
				"COMMERCE_API_ADDRESS": "http://commerce:8080",
				"STATE_DIR":            "/var/lib/storefront",
				"PAYMENT_PUBLIC_KEY":   "pk_test_env",
			},
			flags: []string{},
			want: want{
				runAddress:       "localhost:9999",
				apiAddress:       "http://commerce:8080",
				stateDir:         "/var/lib/storefront",
				paymentPublicKey: "pk_test_env",
			},
		},
		{
			name: "flags only",
			env:  map[string]string{},
			flags: []string{
				"-a", "localhost:7777",
				"-c", "http://flag-commerce:8080",
				"-s", "/tmp/storefront",
				"-p", "pk_test_flag",
			},
			want: want{
				runAddress:       "localhost:7777",
				apiAddress:       "http://flag-commerce:8080",
				stateDir:         "/tmp/storefront",
				paymentPublicKey: "pk_test_flag",
			},
		},
		{
			name: "env overrides flags",
			env: map[string]string{
				"RUN_ADDRESS":          "env:9000",
				"COMMERCE_API_ADDRESS": "http://env-commerce:8080",
			},
			flags: []string{
				"-a", "flag:8000",
				"-c", "http://flag-commerce:8080",
			},
			want: want{
				runAddress: "env:9000",
				apiAddress: "http://env-commerce:8080",
				stateDir:   ".storefront",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			os.Args = append([]string{"test"}, tt.flags...)

			cfg, err := Parse()
			require.NoError(t, err)

			assert.Equal(t, tt.want.runAddress, cfg.RunAddress)
			assert.Equal(t, tt.want.apiAddress, cfg.CommerceAPIAddress)
			assert.Equal(t, tt.want.stateDir, cfg.StateDir)
			assert.Equal(t, tt.want.paymentPublicKey, cfg.PaymentPublicKey)
		})
	}
}
