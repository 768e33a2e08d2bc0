package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/auth"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/authapi"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/deeplink"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/logger"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/loopback"
	"github.com/IamNewInThis/cuidador-app-sub000/pkg/vault"
)

// envConfig is read from the environment and dotenv files.
type envConfig struct {
	Log      logger.Config
	Auth     auth.Config
	API      authapi.Config
	DeepLink deeplink.Config
	Loopback loopback.Config
	Vault    vault.Config
	Password string `env:"AUTHCTL_PASSWORD"`
}

// cliConfig holds the parsed command line.
type cliConfig struct {
	EnvFiles    []string
	Postgres    bool
	MetricsAddr string
	Password    string
	Profile     profileFlags
	Command     string
	Args        []string
}

type profileFlags struct {
	Phone        string
	Birthdate    string
	Country      string
	Relationship string
}

func (p profileFlags) set() bool {
	return p.Phone != "" || p.Birthdate != "" || p.Country != "" || p.Relationship != ""
}

var commandArgs = map[string]int{
	"status":  0,
	"signin":  1,
	"signup":  1,
	"signout": 0,
	"google":  0,
	"reset":   1,
	"recover": 2,
}

var errUsage = errors.New("usage: authctl [flags] status|signin <email>|signup <email>|signout|google|reset <email>|recover <url> <new-password>")

func parseFlags(args []string, stderr io.Writer) (cliConfig, error) {
	var cfg cliConfig
	var envFiles string

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&envFiles, "env", ".env", "comma-separated dotenv files; missing files are skipped")
	fs.BoolVar(&cfg.Postgres, "pg", false, "store profiles in Postgres (PROFILE_DB_URL)")
	fs.StringVar(&cfg.MetricsAddr, "metrics", "", "serve Prometheus metrics on this address while running")
	fs.StringVar(&cfg.Password, "password", "", "password for signin/signup (default $AUTHCTL_PASSWORD)")
	fs.StringVar(&cfg.Profile.Phone, "phone", "", "complete the profile with this phone after sign-in")
	fs.StringVar(&cfg.Profile.Birthdate, "birthdate", "", "profile birthdate")
	fs.StringVar(&cfg.Profile.Country, "country", "", "profile country")
	fs.StringVar(&cfg.Profile.Relationship, "relationship", "", "profile relationship to the baby")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	for f := range strings.SplitSeq(envFiles, ",") {
		if f = strings.TrimSpace(f); f != "" {
			cfg.EnvFiles = append(cfg.EnvFiles, f)
		}
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return cliConfig{}, errUsage
	}
	cfg.Command, cfg.Args = rest[0], rest[1:]

	want, ok := commandArgs[cfg.Command]
	if !ok {
		return cliConfig{}, fmt.Errorf("unknown command %q: %w", cfg.Command, errUsage)
	}
	if len(cfg.Args) != want {
		return cliConfig{}, fmt.Errorf("%s takes %d argument(s): %w", cfg.Command, want, errUsage)
	}
	return cfg, nil
}
