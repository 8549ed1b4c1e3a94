package config

import (
	"strings"

	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// envKeys lists the scalar keys that may come from the environment only.
// AutomaticEnv alone does not surface keys that are absent from the file
// during Unmarshal.
var envKeys = []string{
	"reporter.submission_url",
	"reporter.database_path",
	"reporter.mode",
	"application.name",
	"application.version",
	"application.native_library_dir",
	"application.package_path",
	"application.data_dir",
	"breadcrumbs.enabled",
	"breadcrumbs.directory",
	"breadcrumbs.maximum_breadcrumbs",
	"logging.level",
	"logging.file",
	"metrics.enabled",
	"metrics.address",
	"hooks.enabled",
}

func bindEnv(v *viper.Viper) {
	for _, key := range envKeys {
		// BindEnv only fails when called without a key
		_ = v.BindEnv(key)
	}
}
